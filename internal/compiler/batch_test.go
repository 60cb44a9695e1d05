package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptName(t *testing.T) {
	assert.Equal(t, "16015012345.py", ScriptName("a/b/x.tcd", ScriptMeta{ID: "16015012345"}))
	assert.Equal(t, "x.py", ScriptName("a/b/x.tcd", ScriptMeta{}))
	assert.Equal(t, "123.py", ScriptName("x.tcd", ScriptMeta{ID: "https://hsdes/article?id=123"}))
	assert.Equal(t, "my_case.py", ScriptName("my case.tcd", ScriptMeta{}))
}

func TestBatch(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "scripts")

	write := func(name, body string) string {
		p := filepath.Join(in, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	write("a.tcd", "ID: 100\nSTEP: 1, a\nLog: a\n")
	write("b.tcd", "STEP: 1, b\nLog: b\n")
	write("bad.tcd", "STEP: 1\nRepeat: 2\nLog: x\n")
	write("notes.txt", "ignored")

	sources, err := FindTCDs(in)
	require.NoError(t, err)
	require.Len(t, sources, 3)

	results, err := Batch(context.Background(), defaultTable(t), sources, BatchOptions{OutDir: out, Concurrency: 2})
	require.Error(t, err, "one file fails")
	assert.Contains(t, err.Error(), "bad.tcd")
	require.Len(t, results, 3)

	byBase := make(map[string]BatchResult)
	for _, r := range results {
		byBase[filepath.Base(r.Source)] = r
	}

	a := byBase["a.tcd"]
	require.NoError(t, a.Err)
	assert.Equal(t, filepath.Join(out, "100.py"), a.Output)
	assert.Len(t, a.Fingerprint, 64)
	assert.FileExists(t, a.Output)

	b := byBase["b.tcd"]
	require.NoError(t, b.Err)
	assert.FileExists(t, filepath.Join(out, "b.py"))

	bad := byBase["bad.tcd"]
	assert.True(t, IsStructureError(bad.Err))
	assert.NoFileExists(t, filepath.Join(out, "bad.py"))
}

func TestBatch_DuplicateOutput(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	var sources []string
	for _, name := range []string{"one.tcd", "two.tcd"} {
		p := filepath.Join(in, name)
		require.NoError(t, os.WriteFile(p, []byte("ID: same\nLog: x\n"), 0o644))
		sources = append(sources, p)
	}

	results, err := Batch(context.Background(), defaultTable(t), sources, BatchOptions{OutDir: out})
	require.Error(t, err)
	assert.NoError(t, results[0].Err)
	assert.ErrorContains(t, results[1].Err, "already written")
}

func TestBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := filepath.Join(t.TempDir(), "a.tcd")
	require.NoError(t, os.WriteFile(p, []byte("Log: x\n"), 0o644))

	_, err := Batch(ctx, defaultTable(t), []string{p}, BatchOptions{OutDir: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}
