package pipeline

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"

	"github.com/procsight/procsight/internal/storage"
)

// procNode is one definition in the call graph.
type procNode struct {
	ID   string
	Name string
}

// FanOutEntry is a caller and how many distinct processes it calls.
type FanOutEntry struct {
	ID    string
	Name  string
	Count int
}

// CallGraphStats is the structural analysis of the subprocess mapping:
// who calls whom, call cycles (which deadlock a runtime queue), and the
// widest callers.
type CallGraphStats struct {
	Nodes  int
	Edges  int
	Cycles [][]string    // each cycle as definition names
	FanOut []FanOutEntry // callers ordered widest first
}

// BuildCallGraph loads the subprocess mapping written by the details
// pipeline into a directed graph and analyzes it.
func BuildCallGraph(db *sql.DB) (*CallGraphStats, error) {
	mappings, err := storage.NewReader(db).SubprocessMappings()
	if err != nil {
		return nil, err
	}

	g := graph.New(func(n procNode) string { return n.ID }, graph.Directed())
	names := make(map[string]string)

	addVertex := func(id, name string) error {
		if _, ok := names[id]; ok {
			return nil
		}
		names[id] = name
		if err := g.AddVertex(procNode{ID: id, Name: name}); err != nil {
			return fmt.Errorf("add call graph node %s: %w", id, err)
		}
		return nil
	}

	for _, m := range mappings {
		if err := addVertex(m.ParentID, m.ParentName); err != nil {
			return nil, err
		}
		if err := addVertex(m.CalledID, m.CalledName); err != nil {
			return nil, err
		}
		// Duplicate call stages collapse to one edge.
		if err := g.AddEdge(m.ParentID, m.CalledID); err != nil &&
			!errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return nil, fmt.Errorf("add call edge %s -> %s: %w", m.ParentID, m.CalledID, err)
		}
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("build adjacency map: %w", err)
	}

	stats := &CallGraphStats{Nodes: len(names)}
	for id, targets := range adjacency {
		stats.Edges += len(targets)
		if len(targets) > 0 {
			stats.FanOut = append(stats.FanOut, FanOutEntry{
				ID:    id,
				Name:  names[id],
				Count: len(targets),
			})
		}
	}
	sort.Slice(stats.FanOut, func(i, j int) bool {
		if stats.FanOut[i].Count != stats.FanOut[j].Count {
			return stats.FanOut[i].Count > stats.FanOut[j].Count
		}
		return stats.FanOut[i].Name < stats.FanOut[j].Name
	})

	sccs, err := graph.StronglyConnectedComponents(g)
	if err != nil {
		return nil, fmt.Errorf("find strongly connected components: %w", err)
	}
	for _, scc := range sccs {
		// A single node is only a cycle if it calls itself.
		if len(scc) == 1 {
			if _, selfLoop := adjacency[scc[0]][scc[0]]; !selfLoop {
				continue
			}
		}
		cycle := make([]string, 0, len(scc))
		for _, id := range scc {
			cycle = append(cycle, names[id])
		}
		sort.Strings(cycle)
		stats.Cycles = append(stats.Cycles, cycle)
	}
	sort.Slice(stats.Cycles, func(i, j int) bool {
		return fmt.Sprint(stats.Cycles[i]) < fmt.Sprint(stats.Cycles[j])
	})

	return stats, nil
}
