// Package memory implements graph.Engine entirely in process. It is the
// reference engine: adjacency is indexed per node and direction in
// insertion order, transactions are undo logs carried on the context
// (atomicity without isolation), and refs are generated UUIDs.
package memory

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"lattice.dev/lattice/graph"
)

type node struct {
	ref   graph.NodeRef
	label string
	props map[string]any
}

type edge struct {
	ref   graph.EdgeRef
	start graph.NodeRef
	end   graph.NodeRef
	typ   string
	seq   uint64
	props map[string]any
}

// adjEntry orders a node's incident edges by creation sequence.
type adjEntry struct {
	seq  uint64
	edge graph.EdgeRef
}

func lessAdj(a, b adjEntry) bool {
	return a.seq < b.seq
}

// Engine is an in-memory graph store satisfying graph.Engine,
// graph.NodeSource, and graph.NodeAdmin.
type Engine struct {
	mu    sync.RWMutex
	seq   uint64
	nodes map[graph.NodeRef]*node
	edges map[graph.EdgeRef]*edge
	out   map[graph.NodeRef]*btree.BTreeG[adjEntry]
	in    map[graph.NodeRef]*btree.BTreeG[adjEntry]
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{
		nodes: make(map[graph.NodeRef]*node),
		edges: make(map[graph.EdgeRef]*edge),
		out:   make(map[graph.NodeRef]*btree.BTreeG[adjEntry]),
		in:    make(map[graph.NodeRef]*btree.BTreeG[adjEntry]),
	}
}

// CreateNode stores a node under a fresh ref.
func (e *Engine) CreateNode(ctx context.Context, label string, props map[string]any) (graph.NodeRef, error) {
	st := txFrom(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()

	n := &node{
		ref:   graph.NodeRef(uuid.NewString()),
		label: label,
		props: maps.Clone(props),
	}
	e.nodes[n.ref] = n

	if st.active() {
		st.record(func() {
			delete(e.nodes, n.ref)
		})
	}
	return n.ref, nil
}

// ResolveNode returns a copy of the stored node.
func (e *Engine) ResolveNode(ctx context.Context, ref graph.NodeRef) (*graph.Node, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n, ok := e.nodes[ref]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", graph.ErrNotFound, ref)
	}
	return &graph.Node{Ref: n.ref, Label: n.label, Props: maps.Clone(n.props)}, nil
}

// CreateEdge links from to to under typeName. Both nodes must exist.
func (e *Engine) CreateEdge(ctx context.Context, from, to graph.NodeRef, typeName string) (graph.EdgeInfo, error) {
	if typeName == "" {
		return graph.EdgeInfo{}, fmt.Errorf("%w: empty relationship type", graph.ErrInvalidArgument)
	}

	st := txFrom(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.nodes[from]; !ok {
		return graph.EdgeInfo{}, fmt.Errorf("%w: node %s", graph.ErrNotFound, from)
	}
	if _, ok := e.nodes[to]; !ok {
		return graph.EdgeInfo{}, fmt.Errorf("%w: node %s", graph.ErrNotFound, to)
	}

	e.seq++
	ed := &edge{
		ref:   graph.EdgeRef(uuid.NewString()),
		start: from,
		end:   to,
		typ:   typeName,
		seq:   e.seq,
		props: make(map[string]any),
	}
	e.insertEdge(ed)

	if st.active() {
		st.record(func() {
			e.removeEdge(ed)
		})
	}
	return graph.EdgeInfo{Ref: ed.ref, Start: ed.start, End: ed.end, Type: ed.typ}, nil
}

// DeleteEdge removes an edge and its adjacency entries.
func (e *Engine) DeleteEdge(ctx context.Context, ref graph.EdgeRef) error {
	st := txFrom(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()

	ed, ok := e.edges[ref]
	if !ok {
		return fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}
	e.removeEdge(ed)

	if st.active() {
		st.record(func() {
			e.insertEdge(ed)
		})
	}
	return nil
}

// DescribeEdge returns the endpoints and type of an edge.
func (e *Engine) DescribeEdge(ctx context.Context, ref graph.EdgeRef) (graph.EdgeInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ed, ok := e.edges[ref]
	if !ok {
		return graph.EdgeInfo{}, fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}
	return graph.EdgeInfo{Ref: ed.ref, Start: ed.start, End: ed.end, Type: ed.typ}, nil
}

// EdgeProperty reads one property of an edge.
func (e *Engine) EdgeProperty(ctx context.Context, ref graph.EdgeRef, key string) (any, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ed, ok := e.edges[ref]
	if !ok {
		return nil, false, fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}
	value, ok := ed.props[key]
	return value, ok, nil
}

// SetEdgeProperty writes one property of an edge.
func (e *Engine) SetEdgeProperty(ctx context.Context, ref graph.EdgeRef, key string, value any) error {
	st := txFrom(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()

	ed, ok := e.edges[ref]
	if !ok {
		return fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}

	if st.active() {
		prev, had := ed.props[key]
		st.record(func() {
			if had {
				ed.props[key] = prev
			} else {
				delete(ed.props, key)
			}
		})
	}
	ed.props[key] = value
	return nil
}

// IncidentEdges enumerates a node's edges in insertion order. Outgoing
// edges come before incoming ones when both directions are selected, and
// self-loops appear once.
func (e *Engine) IncidentEdges(ctx context.Context, ref graph.NodeRef, dir graph.Direction, typeName string) iter.Seq2[graph.EdgeInfo, error] {
	return func(yield func(graph.EdgeInfo, error) bool) {
		infos, err := e.incidentSnapshot(ref, dir, typeName)
		if err != nil {
			yield(graph.EdgeInfo{}, err)
			return
		}
		for _, info := range infos {
			if !yield(info, nil) {
				return
			}
		}
	}
}

func (e *Engine) incidentSnapshot(ref graph.NodeRef, dir graph.Direction, typeName string) ([]graph.EdgeInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.nodes[ref]; !ok {
		return nil, fmt.Errorf("%w: node %s", graph.ErrNotFound, ref)
	}

	var infos []graph.EdgeInfo
	seen := make(map[graph.EdgeRef]bool)
	scan := func(tree *btree.BTreeG[adjEntry]) {
		if tree == nil {
			return
		}
		tree.Scan(func(entry adjEntry) bool {
			ed := e.edges[entry.edge]
			if typeName != "" && ed.typ != typeName {
				return true
			}
			if seen[ed.ref] {
				return true
			}
			seen[ed.ref] = true
			infos = append(infos, graph.EdgeInfo{Ref: ed.ref, Start: ed.start, End: ed.end, Type: ed.typ})
			return true
		})
	}

	if dir == graph.DirectionOutbound || dir == graph.DirectionAny {
		scan(e.out[ref])
	}
	if dir == graph.DirectionInbound || dir == graph.DirectionAny {
		scan(e.in[ref])
	}
	return infos, nil
}

// Expand walks outgoing typeName edges breadth-first up to maxDepth,
// yielding each reachable node once at its minimum depth. The start node
// is never yielded.
func (e *Engine) Expand(ctx context.Context, start graph.NodeRef, typeName string, maxDepth int) iter.Seq2[graph.NodeRef, error] {
	return func(yield func(graph.NodeRef, error) bool) {
		e.mu.RLock()
		_, ok := e.nodes[start]
		e.mu.RUnlock()
		if !ok {
			yield("", fmt.Errorf("%w: node %s", graph.ErrNotFound, start))
			return
		}

		visited := map[graph.NodeRef]bool{start: true}
		frontier := []graph.NodeRef{start}
		for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
			var next []graph.NodeRef
			for _, cur := range frontier {
				for _, target := range e.outTargets(cur, typeName) {
					if visited[target] {
						continue
					}
					visited[target] = true
					if !yield(target, nil) {
						return
					}
					next = append(next, target)
				}
			}
			frontier = next
		}
	}
}

func (e *Engine) outTargets(ref graph.NodeRef, typeName string) []graph.NodeRef {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tree := e.out[ref]
	if tree == nil {
		return nil
	}
	var targets []graph.NodeRef
	tree.Scan(func(entry adjEntry) bool {
		ed := e.edges[entry.edge]
		if typeName == "" || ed.typ == typeName {
			targets = append(targets, ed.end)
		}
		return true
	})
	return targets
}

// insertEdge and removeEdge keep the edge map and both adjacency indexes
// in step. Callers hold the write lock.
func (e *Engine) insertEdge(ed *edge) {
	e.edges[ed.ref] = ed
	outTree := e.out[ed.start]
	if outTree == nil {
		outTree = btree.NewBTreeG(lessAdj)
		e.out[ed.start] = outTree
	}
	outTree.Set(adjEntry{seq: ed.seq, edge: ed.ref})

	inTree := e.in[ed.end]
	if inTree == nil {
		inTree = btree.NewBTreeG(lessAdj)
		e.in[ed.end] = inTree
	}
	inTree.Set(adjEntry{seq: ed.seq, edge: ed.ref})
}

func (e *Engine) removeEdge(ed *edge) {
	delete(e.edges, ed.ref)
	if tree := e.out[ed.start]; tree != nil {
		tree.Delete(adjEntry{seq: ed.seq})
	}
	if tree := e.in[ed.end]; tree != nil {
		tree.Delete(adjEntry{seq: ed.seq})
	}
}
