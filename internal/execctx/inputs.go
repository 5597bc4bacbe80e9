package execctx

import (
	"github.com/tagflow/engine/internal/flow"
	"github.com/tagflow/engine/internal/quality"
)

// InputSource resolves a node's declared input ports to upstream values.
// SingleShotInputs implements it for one-off flow invocations (internal/
// executor); the continuous scan engine's input-state manager implements it
// for the running, tick-by-tick case. Context depends only on this
// interface so execctx never imports internal/scan.
type InputSource interface {
	Input(nodeID, port string) (any, bool)
	InputCount(nodeID string) int
}

// qualifiedValue carries an upstream node's output value and quality so a
// downstream node's quality.Extract call sees the same quality its producer
// recorded, without every InputSource having to know about tagvalue.TagValue.
type qualifiedValue struct {
	value   any
	quality quality.Code
}

func (q qualifiedValue) QualityValue() (any, quality.Code) { return q.value, q.quality }

// SingleShotInputs resolves inputs from a flow document's edges plus a
// growing table of completed node outputs, filled in as the executor walks
// the scheduler plan in topological order.
type SingleShotInputs struct {
	edges   []flow.Edge
	pinData map[string]any
	outputs map[string]flow.NodeOutput
}

// NewSingleShotInputs seeds an InputSource from doc's edges and pinData,
// keyed by node id so pinned nodes resolve to their pinned value without
// ever running.
func NewSingleShotInputs(doc *flow.Document) *SingleShotInputs {
	pinned := make(map[string]any, len(doc.PinData))
	for nodeID, tv := range doc.PinData {
		pinned[nodeID] = tv
	}
	return &SingleShotInputs{
		edges:   doc.Edges,
		pinData: pinned,
		outputs: make(map[string]flow.NodeOutput, len(doc.Nodes)),
	}
}

// Record stores a completed node's output so downstream nodes can read it.
func (s *SingleShotInputs) Record(nodeID string, out flow.NodeOutput) {
	s.outputs[nodeID] = out
}

// Input resolves a (nodeID, port) pair by finding the edge whose target is
// that pair and returning the source node's recorded output.
func (s *SingleShotInputs) Input(nodeID, port string) (any, bool) {
	for _, e := range s.edges {
		if e.TargetNodeID != nodeID || e.TargetPort != port {
			continue
		}
		if pinned, ok := s.pinData[e.SourceNodeID]; ok {
			return pinned, true
		}
		if out, ok := s.outputs[e.SourceNodeID]; ok {
			return qualifiedValue{value: out.Value, quality: quality.Code(out.Quality)}, true
		}
		return nil, false
	}
	return nil, false
}

// InputCount counts the edges targeting nodeID, matching GetInputCount's
// contract that a node's ports are indexed 0..count-1 (input0, input1, ...).
func (s *SingleShotInputs) InputCount(nodeID string) int {
	n := 0
	for _, e := range s.edges {
		if e.TargetNodeID == nodeID {
			n++
		}
	}
	return n
}
