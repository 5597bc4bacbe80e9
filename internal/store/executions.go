package store

import (
	"context"
	"encoding/json"

	"github.com/tagflow/engine/internal/executor"
	"github.com/tagflow/engine/internal/flow"
	"github.com/tagflow/engine/internal/flowerr"
)

var _ executor.Recorder = (*Store)(nil)

// CreateExecution inserts the running execution record the executor creates
// at the start of an invocation.
func (s *Store) CreateExecution(ctx context.Context, rec *flow.ExecutionRecord) error {
	outputs, err := json.Marshal(rec.NodeOutputs)
	if err != nil {
		return flowerr.Wrap(flowerr.Validation, err, "encode node outputs")
	}
	_, err = s.control.ExecContext(ctx, `
		INSERT INTO flow_executions (id, flow_id, status, started_at, trigger_node_id, node_outputs)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.FlowID, rec.Status, rec.StartedAt, rec.TriggerNodeID, outputs)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "create execution record")
	}
	return nil
}

// CompleteExecution updates an execution record at the end of an invocation
// with its final status, node outputs, and error log.
func (s *Store) CompleteExecution(ctx context.Context, rec *flow.ExecutionRecord) error {
	outputs, err := json.Marshal(rec.NodeOutputs)
	if err != nil {
		return flowerr.Wrap(flowerr.Validation, err, "encode node outputs")
	}
	errorLog, err := json.Marshal(rec.ErrorLog)
	if err != nil {
		return flowerr.Wrap(flowerr.Validation, err, "encode error log")
	}
	_, err = s.control.ExecContext(ctx, `
		UPDATE flow_executions
		SET status = $2, completed_at = $3, node_outputs = $4, error_log = $5
		WHERE id = $1
	`, rec.ID, rec.Status, rec.CompletedAt, outputs, errorLog)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "complete execution record")
	}
	return nil
}

// ReplaceTagDependencies recomputes the tag-dependency index for a flow,
// the (flow, tag, node, direction) rows spec.md §4.9 requires refreshed on
// every invocation.
func (s *Store) ReplaceTagDependencies(ctx context.Context, flowID string, deps []executor.TagDependency) error {
	tx, err := s.control.BeginTxx(ctx, nil)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "begin tag dependency transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM flow_tag_dependencies WHERE flow_id = $1`, flowID); err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "clear tag dependencies")
	}
	for _, dep := range deps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO flow_tag_dependencies (flow_id, tag_id, node_id, dependency_type)
			VALUES ($1, $2, $3, $4)
		`, dep.FlowID, dep.TagID, dep.NodeID, dep.Direction)
		if err != nil {
			return flowerr.Wrap(flowerr.Transient, err, "insert tag dependency")
		}
	}
	if err := tx.Commit(); err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "commit tag dependency transaction")
	}
	return nil
}
