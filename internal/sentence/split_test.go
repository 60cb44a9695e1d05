package sentence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitArgs(t *testing.T) {
	assert.Nil(t, SplitArgs(""))
	assert.Nil(t, SplitArgs("   "))
	assert.Equal(t, []string{"a"}, SplitArgs(" a "))
	assert.Equal(t, []string{"VTd", "Enable"}, SplitArgs("VTd,  Enable"))
	assert.Equal(t, []string{"a", "", "b"}, SplitArgs("a,,b"))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"echo hi", Command{Line: "echo hi"}},
		{"nocheck, timeout=20, echo hi", Command{Line: "echo hi", Timeout: 20, NoCheck: true}},
		{"timeout=20, nocheck, echo hi", Command{Line: "echo hi", Timeout: 20, NoCheck: true}},
		{"timeout=5, ls -l, /tmp", Command{Line: "ls -l, /tmp", Timeout: 5}},
		{"nocheck, a,b,c", Command{Line: "a,b,c", NoCheck: true}},
		{"timeout=abc, ls", Command{Line: "timeout=abc, ls"}},
		{"nocheck", Command{NoCheck: true}},
		{"timeout=20", Command{Timeout: 20}},
		{"nocheck, timeout=20", Command{Timeout: 20, NoCheck: true}},
		{"timeout=0", Command{Line: "timeout=0"}},
		{"", Command{}},
		{"nocheck, nocheck, x", Command{Line: "nocheck, x", NoCheck: true}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.in))
		})
	}
}

func TestSplitCommandNormalizesOrder(t *testing.T) {
	assert.Equal(t, []string{"nocheck", "20", "echo hi"}, SplitCommand("timeout=20, nocheck, echo hi"))
	assert.Equal(t, []string{"20", "a, b"}, SplitCommand("timeout=20, a, b"))
	assert.Equal(t, []string{"x"}, SplitCommand("x"))
}

func TestSplitCommandWithoutCommand(t *testing.T) {
	assert.Nil(t, SplitCommand("timeout=20"))
	assert.Nil(t, SplitCommand("nocheck, timeout=5"))
	assert.Nil(t, SplitCommand(""))
}

func TestSplitStep(t *testing.T) {
	assert.Equal(t, []string{"1"}, SplitStep("1"))
	assert.Equal(t, []string{"1"}, SplitStep("1,"))
	assert.Equal(t, []string{"2", `check \"a\", then b`}, SplitStep(`2, check "a", then b`))
	assert.Nil(t, SplitStep(""))
}

func TestSplitLog(t *testing.T) {
	assert.Equal(t, []string{`say \"hi\", twice`}, SplitLog(` say "hi", twice `))
}
