package graph

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// WriteColdStart writes the store's current state as the optional cold-start
// snapshot format: an array of nodes followed by an array of edges, one JSON
// value per line.
func (s *Store) WriteColdStart(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()

	sn := s.Snapshot()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	for _, n := range sn.Nodes {
		if err := enc.Encode(n); err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
	}
	for _, edges := range sn.Out {
		for _, e := range edges {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("failed to encode edge: %w", err)
			}
		}
	}
	return w.Flush()
}

// LoadColdStart populates the store from a cold-start snapshot file written
// by WriteColdStart. Lines are distinguished by presence of a "kind" field
// (nodes) vs. "src"/"dst" fields (edges).
func (s *Store) LoadColdStart(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var pendingEdges []Edge
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(line, &probe); err != nil {
			return fmt.Errorf("failed to parse snapshot line: %w", err)
		}
		if _, isEdge := probe["src"]; isEdge {
			var e Edge
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("failed to parse edge: %w", err)
			}
			pendingEdges = append(pendingEdges, e)
			continue
		}
		var n Node
		if err := json.Unmarshal(line, &n); err != nil {
			return fmt.Errorf("failed to parse node: %w", err)
		}
		if err := s.AddNode(n); err != nil {
			return fmt.Errorf("failed to load node %s: %w", n.ID, err)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("failed to scan snapshot file: %w", err)
	}
	for _, e := range pendingEdges {
		if err := s.AddEdge(e); err != nil {
			return fmt.Errorf("failed to load edge %s->%s: %w", e.Src, e.Dst, err)
		}
	}
	return nil
}
