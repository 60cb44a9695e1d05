package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/sentence"
)

// BlockIssue is a problem found in the TCD block include graph.
type BlockIssue struct {
	Kind    string   `json:"kind"` // "cycle" or "missing"
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// Issue kinds.
const (
	IssueCycle   = "cycle"
	IssueMissing = "missing"
)

// blockGraph maps a block name to the blocks it runs, in line order.
type blockGraph map[string][]string

// AnalyzeBlocks checks the Run TCD Block references of every block in dir
// and of the given root files. It reports include cycles, which would
// make translation fail, and references to blocks that do not exist.
//
// The algorithm:
//  1. Build block -> referenced blocks from Run TCD Block lines
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
func AnalyzeBlocks(dir string, roots []string) ([]BlockIssue, error) {
	graph, err := buildBlockGraph(dir, roots)
	if err != nil {
		return nil, err
	}

	var issues []BlockIssue
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			path := reconstructCyclePath(scc, graph)
			issues = append(issues, BlockIssue{
				Kind:    IssueCycle,
				Path:    path,
				Message: "TCD block cycle: " + strings.Join(path, " -> "),
			})
		}
	}

	for _, from := range sortedNodes(graph) {
		for _, to := range graph[from] {
			if _, ok := graph[to]; !ok {
				issues = append(issues, BlockIssue{
					Kind:    IssueMissing,
					Path:    []string{from, to},
					Message: fmt.Sprintf("%s runs missing block %s", from, to),
				})
			}
		}
	}
	return issues, nil
}

// buildBlockGraph reads every <name>.tcdb in dir plus the roots. Roots are
// keyed by their file path so they never collide with block names.
func buildBlockGraph(dir string, roots []string) (blockGraph, error) {
	graph := make(blockGraph)

	if dir != "" {
		files, err := filepath.Glob(filepath.Join(dir, "*"+BlockExt))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			refs, err := blockRefs(f)
			if err != nil {
				return nil, err
			}
			graph[strings.TrimSuffix(filepath.Base(f), BlockExt)] = refs
		}
	}

	for _, r := range roots {
		refs, err := blockRefs(r)
		if err != nil {
			return nil, err
		}
		graph[r] = refs
	}
	return graph, nil
}

func blockRefs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	refs := []string{}
	seen := make(map[string]bool)
	for _, raw := range ir.SplitLines(string(data)) {
		l := ir.ParseLine(raw)
		if l.Kind != ir.LineStep || l.Op() != ir.OpRunTCDBlock {
			continue
		}
		name, _, err := parseBlockArgs(sentence.SplitArgs(l.Args))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}
	return refs, nil
}

func hasSelfLoop(node string, graph blockGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

func sortedNodes(graph blockGraph) []string {
	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in name order so the result is stable.
func tarjanSCC(graph blockGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, known := graph[w]; !known {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedNodes(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside an SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph blockGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
