// Package ingestion validates, orders and applies streaming telemetry
// records to the dependency graph store, with bounded buffering and
// explicit back-pressure.
package ingestion

import "time"

// DataType is the recognized record payload shape.
type DataType string

const (
	DataSensorLoad        DataType = "sensor.load"
	DataSensorHealth      DataType = "sensor.health"
	DataTopologyNodeUpsert DataType = "topology.node.upsert"
	DataTopologyNodeRemove DataType = "topology.node.remove"
	DataTopologyEdgeUpsert DataType = "topology.edge.upsert"
	DataTopologyEdgeRemove DataType = "topology.edge.remove"
)

// Record is one accepted-wire-format ingestion record.
type Record struct {
	SourceID     string                 `json:"source_id"`
	Timestamp    time.Time              `json:"timestamp"`
	DataType     DataType               `json:"data_type"`
	Payload      map[string]interface{} `json:"payload"`
	QualityScore float64                `json:"quality_score"`
}

// BatchSummary reports the outcome of IngestBatch.
type BatchSummary struct {
	Accepted        int
	RejectedByReason map[string]int
}

func newBatchSummary() BatchSummary {
	return BatchSummary{RejectedByReason: make(map[string]int)}
}
