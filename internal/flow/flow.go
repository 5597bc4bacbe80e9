// Package flow defines the flow document data model: nodes, edges, pinned
// data for partial execution, and the execution record persisted per
// invocation.
package flow

import (
	"time"

	"github.com/tagflow/engine/internal/tagvalue"
)

// Node is one configured node within a flow document.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
	Position map[string]any `json:"position,omitempty"`
}

// Edge is a directed connection between two node ports.
type Edge struct {
	SourceNodeID string `json:"source_node_id"`
	SourcePort   string `json:"source_port"`
	TargetNodeID string `json:"target_node_id"`
	TargetPort   string `json:"target_port"`
}

// Document is the full flow graph plus partial-execution and persistent
// scripting state.
type Document struct {
	ID         string                        `json:"id"`
	Nodes      []Node                        `json:"nodes"`
	Edges      []Edge                        `json:"edges"`
	PinData    map[string]tagvalue.TagValue  `json:"pinData,omitempty"`
	StaticData map[string]any                `json:"staticData,omitempty"`
	// TriggerSchedule is an optional cron expression invoking this flow
	// once per calendar schedule, supplementing fixed-period scan mode.
	TriggerSchedule string `json:"triggerSchedule,omitempty"`
}

// NodeByID returns the node with the given id, if present.
func (d *Document) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Status is the lifecycle state of an ExecutionRecord.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// NodeOutput is the per-node result recorded against an execution.
type NodeOutput struct {
	Value         any       `json:"value"`
	Quality       uint8     `json:"quality"`
	Logs          []string  `json:"logs,omitempty"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	ExecutionTime int64     `json:"execution_time_ms"`
}

// ExecutionRecord is created at the start of each invocation and updated at
// the end.
type ExecutionRecord struct {
	ID            string                `json:"id"`
	FlowID        string                `json:"flow_id"`
	Status        Status                `json:"status"`
	StartedAt     time.Time             `json:"started_at"`
	CompletedAt   time.Time             `json:"completed_at,omitempty"`
	TriggerNodeID string                `json:"trigger_node_id,omitempty"`
	NodeOutputs   map[string]NodeOutput `json:"node_outputs"`
	ErrorLog      []string              `json:"error_log,omitempty"`
}
