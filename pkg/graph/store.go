package graph

import (
	"sort"
	"sync"
	"time"

	rerrors "github.com/jihwankim/resilience-core/pkg/errors"
	"github.com/jihwankim/resilience-core/pkg/telemetry"
)

// Store is a concurrency-safe in-memory dependency graph. All public
// mutations are atomic with respect to concurrent readers: a reader always
// observes either the pre- or post-mutation state, never a torn structure.
type Store struct {
	mu        sync.RWMutex
	nodes     map[string]Node
	out       map[string]map[string]Edge // src -> dst -> edge
	in        map[string]map[string]Edge // dst -> src -> edge
	version   uint64
	telemetry *telemetry.Registry
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		nodes: make(map[string]Node),
		out:   make(map[string]map[string]Edge),
		in:    make(map[string]map[string]Edge),
	}
}

// SetTelemetry attaches a metrics registry; mutation counters and node/edge
// gauges are recorded from this point forward. Safe to call with nil to
// detach.
func (s *Store) SetTelemetry(reg *telemetry.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = reg
	if reg != nil {
		reg.GraphNodeCount.Set(float64(len(s.nodes)))
		reg.GraphEdgeCount.Set(float64(s.edgeCountLocked()))
	}
}

func (s *Store) edgeCountLocked() int {
	n := 0
	for _, dsts := range s.out {
		n += len(dsts)
	}
	return n
}

func (s *Store) recordMutationLocked(kind string) {
	if s.telemetry == nil {
		return
	}
	s.telemetry.GraphMutations.WithLabelValues(kind).Inc()
	s.telemetry.GraphNodeCount.Set(float64(len(s.nodes)))
	s.telemetry.GraphEdgeCount.Set(float64(s.edgeCountLocked()))
}

// AddNode inserts n. Returns conflict if the NodeID already exists.
func (s *Store) AddNode(n Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[n.ID]; exists {
		return rerrors.New(rerrors.Conflict, "node "+n.ID+" already exists")
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}
	s.nodes[n.ID] = n
	s.out[n.ID] = make(map[string]Edge)
	s.in[n.ID] = make(map[string]Edge)
	s.version++
	s.recordMutationLocked("add_node")
	return nil
}

// UpdateNode applies a partial update to an existing node.
func (s *Store) UpdateNode(id string, delta NodeDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return rerrors.New(rerrors.NotFound, "node "+id+" does not exist")
	}
	if delta.Load != nil {
		if *delta.Load < 0 {
			return rerrors.New(rerrors.InvalidRequest, "load must be non-negative")
		}
		n.Load = *delta.Load
	}
	if delta.Health != nil {
		if *delta.Health < 0 || *delta.Health > 1 {
			return rerrors.New(rerrors.InvalidRequest, "health must be within [0,1]")
		}
		n.Health = *delta.Health
	}
	if delta.Properties != nil {
		if n.Properties == nil {
			n.Properties = make(map[string]interface{}, len(delta.Properties))
		}
		for k, v := range delta.Properties {
			n.Properties[k] = v
		}
	}
	n.UpdatedAt = time.Now()
	s.nodes[id] = n
	s.version++
	s.recordMutationLocked("update_node")
	return nil
}

// RemoveNode deletes a node and every edge incident to it.
func (s *Store) RemoveNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return rerrors.New(rerrors.NotFound, "node "+id+" does not exist")
	}

	for dst := range s.out[id] {
		delete(s.in[dst], id)
	}
	for src := range s.in[id] {
		delete(s.out[src], id)
	}
	delete(s.out, id)
	delete(s.in, id)
	delete(s.nodes, id)
	s.version++
	s.recordMutationLocked("remove_node")
	return nil
}

// AddEdge inserts a directed dependency src -> dst.
func (s *Store) AddEdge(e Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Src == e.Dst {
		return rerrors.New(rerrors.InvalidRequest, "self-loops are not allowed")
	}
	if _, ok := s.nodes[e.Src]; !ok {
		return rerrors.New(rerrors.NotFound, "src node "+e.Src+" does not exist")
	}
	if _, ok := s.nodes[e.Dst]; !ok {
		return rerrors.New(rerrors.NotFound, "dst node "+e.Dst+" does not exist")
	}
	if _, exists := s.out[e.Src][e.Dst]; exists {
		return rerrors.New(rerrors.Conflict, "edge "+e.Src+"->"+e.Dst+" already exists")
	}

	s.out[e.Src][e.Dst] = e
	s.in[e.Dst][e.Src] = e
	s.version++
	s.recordMutationLocked("add_edge")
	return nil
}

// RemoveEdge deletes the directed edge src -> dst.
func (s *Store) RemoveEdge(src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.out[src][dst]; !ok {
		return rerrors.New(rerrors.NotFound, "edge "+src+"->"+dst+" does not exist")
	}
	delete(s.out[src], dst)
	delete(s.in[dst], src)
	s.version++
	s.recordMutationLocked("remove_edge")
	return nil
}

// GetNode returns a copy of the node with the given id.
func (s *Store) GetNode(id string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return Node{}, rerrors.New(rerrors.NotFound, "node "+id+" does not exist")
	}
	return n, nil
}

// Version returns the current mutation version, used to derive fingerprints
// and to detect criticality-cache staleness.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Neighbors performs a BFS from id following edges in the given direction up
// to max_depth hops, ordered by (depth, NodeID) for determinism.
func (s *Store) Neighbors(id string, dir Direction, maxDepth int) ([]NeighborResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, rerrors.New(rerrors.NotFound, "node "+id+" does not exist")
	}

	visited := map[string]int{id: 0}
	queue := []string{id}
	var results []NeighborResult

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		depth := visited[cur]
		if depth >= maxDepth {
			continue
		}

		next := s.adjacentIDs(cur, dir)
		sort.Strings(next)
		for _, nb := range next {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = depth + 1
			queue = append(queue, nb)
			results = append(results, NeighborResult{Node: s.nodes[nb], Depth: depth + 1})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		return results[i].Node.ID < results[j].Node.ID
	})
	return results, nil
}

func (s *Store) adjacentIDs(id string, dir Direction) []string {
	var ids []string
	if dir == DirOut || dir == DirBoth {
		for dst := range s.out[id] {
			ids = append(ids, dst)
		}
	}
	if dir == DirIn || dir == DirBoth {
		for src := range s.in[id] {
			ids = append(ids, src)
		}
	}
	return ids
}

// Snapshot is a logically immutable, structurally copied view of the graph.
// Later mutations of the Store never affect an already-issued Snapshot.
type Snapshot struct {
	Version uint64
	Nodes   map[string]Node
	Out     map[string]map[string]Edge
	In      map[string]map[string]Edge
}

// Node returns a copy of the node with the given id from the snapshot.
func (sn *Snapshot) Node(id string) (Node, bool) {
	n, ok := sn.Nodes[id]
	return n, ok
}

// OutNeighbors returns the IDs of nodes sn's node id depends on.
func (sn *Snapshot) OutNeighbors(id string) []string {
	var ids []string
	for dst := range sn.Out[id] {
		ids = append(ids, dst)
	}
	sort.Strings(ids)
	return ids
}

// InNeighbors returns the IDs of nodes that depend on id.
func (sn *Snapshot) InNeighbors(id string) []string {
	var ids []string
	for src := range sn.In[id] {
		ids = append(ids, src)
	}
	sort.Strings(ids)
	return ids
}

// Edge returns the edge src->dst from the snapshot, if present.
func (sn *Snapshot) Edge(src, dst string) (Edge, bool) {
	e, ok := sn.Out[src][dst]
	return e, ok
}

// Snapshot returns a consistent, structurally-copied view of the entire
// graph. Mutations after this call never affect the returned Snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyAll()
}

// Subgraph returns a consistent snapshot of the subgraph reachable from seeds
// within max_depth hops in either direction.
func (s *Store) Subgraph(seeds []string, maxDepth int) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, seed := range seeds {
		if _, ok := s.nodes[seed]; !ok {
			return nil, rerrors.New(rerrors.NotFound, "seed node "+seed+" does not exist")
		}
	}

	visited := make(map[string]bool)
	queue := append([]string{}, seeds...)
	for _, seed := range seeds {
		visited[seed] = true
	}
	depths := map[string]int{}
	for _, seed := range seeds {
		depths[seed] = 0
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depths[cur] >= maxDepth {
			continue
		}
		for _, nb := range s.adjacentIDs(cur, DirBoth) {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			depths[nb] = depths[cur] + 1
			queue = append(queue, nb)
		}
	}

	sn := &Snapshot{
		Version: s.version,
		Nodes:   make(map[string]Node, len(visited)),
		Out:     make(map[string]map[string]Edge, len(visited)),
		In:      make(map[string]map[string]Edge, len(visited)),
	}
	for id := range visited {
		sn.Nodes[id] = s.nodes[id]
		sn.Out[id] = make(map[string]Edge)
		sn.In[id] = make(map[string]Edge)
	}
	for id := range visited {
		for dst, e := range s.out[id] {
			if visited[dst] {
				sn.Out[id][dst] = e
				sn.In[dst][id] = e
			}
		}
	}
	return sn, nil
}

func (s *Store) copyAll() *Snapshot {
	sn := &Snapshot{
		Version: s.version,
		Nodes:   make(map[string]Node, len(s.nodes)),
		Out:     make(map[string]map[string]Edge, len(s.out)),
		In:      make(map[string]map[string]Edge, len(s.in)),
	}
	for id, n := range s.nodes {
		sn.Nodes[id] = n
	}
	for id, edges := range s.out {
		m := make(map[string]Edge, len(edges))
		for dst, e := range edges {
			m[dst] = e
		}
		sn.Out[id] = m
	}
	for id, edges := range s.in {
		m := make(map[string]Edge, len(edges))
		for src, e := range edges {
			m[src] = e
		}
		sn.In[id] = m
	}
	return sn
}
