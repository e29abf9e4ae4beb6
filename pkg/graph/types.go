// Package graph implements the dependency graph store: typed nodes and
// edges, thread-safe mutation, and neighbor/subgraph/snapshot queries.
package graph

import "time"

// Kind tags the sector a node belongs to.
type Kind string

const (
	KindPower      Kind = "power"
	KindWater      Kind = "water"
	KindTelecom    Kind = "telecom"
	KindTransport  Kind = "transport"
	KindHealthcare Kind = "healthcare"
	KindEmergency  Kind = "emergency"
	KindOther      Kind = "other"
)

// Location is an optional geographic position.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Node is a single infrastructure element.
type Node struct {
	ID          string                 `json:"id" yaml:"id"`
	Kind        Kind                   `json:"kind" yaml:"kind"`
	Capacity    float64                `json:"capacity" yaml:"capacity"`
	Load        float64                `json:"load" yaml:"load"`
	Health      float64                `json:"health" yaml:"health"`
	Criticality float64                `json:"criticality" yaml:"criticality"`
	Location    *Location              `json:"location,omitempty" yaml:"location,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at" yaml:"updated_at"`
}

// LoadFactor returns load/capacity, or 0 when capacity is 0.
func (n Node) LoadFactor() float64 {
	if n.Capacity <= 0 {
		return 0
	}
	return n.Load / n.Capacity
}

// Edge is a directed dependency Src -> Dst meaning "Src depends on Dst".
type Edge struct {
	Src                     string                 `json:"src" yaml:"src"`
	Dst                     string                 `json:"dst" yaml:"dst"`
	Strength                float64                `json:"strength" yaml:"strength"`
	PropagationProbability  float64                `json:"propagation_probability" yaml:"propagation_probability"`
	LatencyMS               float64                `json:"latency_ms" yaml:"latency_ms"`
	Properties              map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// NodeDelta is a partial update applied through UpdateNode. Nil fields are
// left unchanged.
type NodeDelta struct {
	Load       *float64
	Health     *float64
	Properties map[string]interface{}
}

// Direction selects which edges Neighbors follows.
type Direction string

const (
	DirIn   Direction = "in"
	DirOut  Direction = "out"
	DirBoth Direction = "both"
)

// NeighborResult pairs a discovered node with its BFS depth from the seed.
type NeighborResult struct {
	Node  Node
	Depth int
}
