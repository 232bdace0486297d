// Package graph turns dependency edges into a file-level graph and answers
// reachability questions over it.
package graph

import (
	"path/filepath"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/jward/arbor/internal/model"
)

// NodeTypeFile is the type of every node; nodes are files.
const NodeTypeFile = "File"

// Node is a file in the graph.
type Node struct {
	ID         string            `json:"id" yaml:"id"`
	Label      string            `json:"label" yaml:"label"`
	Type       string            `json:"node_type" yaml:"node_type"`
	Properties map[string]string `json:"properties" yaml:"properties"`
}

// Edge is one dependency between two files.
type Edge struct {
	Source     string               `json:"source" yaml:"source"`
	Target     string               `json:"target" yaml:"target"`
	Label      string               `json:"label" yaml:"label"`
	Type       model.DependencyType `json:"edge_type" yaml:"edge_type"`
	Weight     float64              `json:"weight" yaml:"weight"`
	Properties map[string]string    `json:"properties" yaml:"properties"`
}

// CodeGraph holds one node per dependency endpoint and one edge per
// dependency.
type CodeGraph struct {
	Nodes map[string]Node `json:"nodes" yaml:"nodes"`
	Edges []Edge          `json:"edges" yaml:"edges"`
}

// New builds a graph from deps. Edge order follows deps.
func New(deps []model.Dependency) *CodeGraph {
	g := &CodeGraph{
		Nodes: make(map[string]Node),
		Edges: make([]Edge, 0, len(deps)),
	}
	for _, d := range deps {
		g.addNode(d.Source)
		g.addNode(d.Target)
		g.Edges = append(g.Edges, Edge{
			Source:     d.Source,
			Target:     d.Target,
			Label:      string(d.Type),
			Type:       d.Type,
			Weight:     1.0,
			Properties: edgeProperties(d),
		})
	}
	return g
}

func (g *CodeGraph) addNode(path string) {
	if _, ok := g.Nodes[path]; ok {
		return
	}
	label := filepath.Base(path)
	if label == "." || label == string(filepath.Separator) {
		label = "Unknown"
	}
	g.Nodes[path] = Node{
		ID:         path,
		Label:      label,
		Type:       NodeTypeFile,
		Properties: map[string]string{},
	}
}

func edgeProperties(d model.Dependency) map[string]string {
	props := map[string]string{}
	if d.Line != nil {
		props["line"] = strconv.Itoa(*d.Line)
	}
	if d.Info != nil {
		props["info"] = *d.Info
	}
	if d.Resolution != "" {
		props["resolution"] = string(d.Resolution)
	}
	return props
}

// Outgoing returns the edges whose source is path.
func (g *CodeGraph) Outgoing(path string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == path {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the edges whose target is path.
func (g *CodeGraph) Incoming(path string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Target == path {
			out = append(out, e)
		}
	}
	return out
}

// Neighbors returns the distinct files path depends on, sorted.
func (g *CodeGraph) Neighbors(path string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range g.Outgoing(path) {
		if !seen[e.Target] {
			seen[e.Target] = true
			out = append(out, e.Target)
		}
	}
	slices.Sort(out)
	return out
}

// ShortestPath finds the fewest-edges path from one file to another with a
// breadth-first search. A file reaches itself with an empty path.
func (g *CodeGraph) ShortestPath(from, to string) ([]Edge, bool) {
	if from == to {
		return []Edge{}, true
	}

	adj := make(map[string][]int)
	for i, e := range g.Edges {
		adj[e.Source] = append(adj[e.Source], i)
	}

	type step struct {
		prev string
		edge int
	}
	pred := make(map[string]step)
	visited := map[string]bool{from: true}
	queue := []string{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			var path []Edge
			for n := to; n != from; n = pred[n].prev {
				path = append(path, g.Edges[pred[n].edge])
			}
			slices.Reverse(path)
			return path, true
		}
		for _, i := range adj[cur] {
			next := g.Edges[i].Target
			if visited[next] {
				continue
			}
			visited[next] = true
			pred[next] = step{prev: cur, edge: i}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// Cycles returns every strongly connected component spanning more than one
// file. Files inside a component are sorted and components are ordered by
// their first file. Self loops never form a cycle on their own.
func (g *CodeGraph) Cycles() [][]string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	index := make(map[string]int64, len(ids))

	dg := simple.NewDirectedGraph()
	for i, id := range ids {
		index[id] = int64(i)
		dg.AddNode(simple.Node(i))
	}
	for _, e := range g.Edges {
		from, to := index[e.Source], index[e.Target]
		if from == to {
			continue
		}
		dg.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}

	var cycles [][]string
	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) < 2 {
			continue
		}
		files := make([]string, 0, len(scc))
		for _, n := range scc {
			files = append(files, ids[n.ID()])
		}
		slices.Sort(files)
		cycles = append(cycles, files)
	}
	slices.SortFunc(cycles, func(a, b []string) int {
		return slices.Compare(a, b)
	})
	return cycles
}
