// Package executor drives a single flow invocation end to end: load,
// validate, schedule, walk nodes honoring pinData, and persist the
// resulting execution record. It is the single-shot counterpart to
// internal/scan's continuous scan-cycle engine; both build per-node
// execctx.Context values from the same Services.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tagflow/engine/internal/execctx"
	"github.com/tagflow/engine/internal/flow"
	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/obslog"
	"github.com/tagflow/engine/internal/registry"
	"github.com/tagflow/engine/internal/scheduler"
)

// onErrorStop is a node's default error policy: a node error with no
// explicit onError property aborts the flow, matching spec.md's default.
const onErrorStop = "stop"

// Recorder persists execution records and the tag-dependency index. All
// calls are best-effort from the executor's perspective: a Recorder failure
// is logged but never masks the primary execution outcome.
type Recorder interface {
	CreateExecution(ctx context.Context, rec *flow.ExecutionRecord) error
	CompleteExecution(ctx context.Context, rec *flow.ExecutionRecord) error
	ReplaceTagDependencies(ctx context.Context, flowID string, deps []TagDependency) error
}

// TagDependency is one (flow, tag, node, direction) row the executor
// recomputes from a flow document's tag-input/tag-output nodes before each
// run, per spec.md §4.9.
type TagDependency struct {
	FlowID    string
	TagID     string
	NodeID    string
	Direction string // "read" or "write"
}

// Executor owns the registry and collaborators shared across invocations.
type Executor struct {
	registry *registry.Registry
	services execctx.Services
	recorder Recorder
	log      *obslog.Logger
}

// New builds an Executor. recorder may be nil, in which case executions run
// without any persistence (useful for dry runs and tests).
func New(reg *registry.Registry, services execctx.Services, recorder Recorder, log *obslog.Logger) *Executor {
	return &Executor{registry: reg, services: services, recorder: recorder, log: log}
}

// Run executes doc once, honoring pinData, and returns the completed
// execution record. doc is always validated in strict (deploy-time) mode
// first; an invalid flow returns a Validation error and no record.
func (e *Executor) Run(ctx context.Context, doc *flow.Document, triggerNodeID string) (*flow.ExecutionRecord, error) {
	validation := flow.Validate(doc, e.registry, true)
	if !validation.Valid {
		return nil, flowerr.Newf(flowerr.Validation, "flow %s failed validation: %v", doc.ID, validation.Errors)
	}

	plan, err := scheduler.BuildPlan(doc, nil)
	if err != nil {
		return nil, err
	}

	rec := &flow.ExecutionRecord{
		ID:            uuid.NewString(),
		FlowID:        doc.ID,
		Status:        flow.StatusRunning,
		StartedAt:     time.Now().UTC(),
		TriggerNodeID: triggerNodeID,
		NodeOutputs:   make(map[string]flow.NodeOutput, len(doc.Nodes)),
	}

	ctx = obslog.WithScope(ctx, obslog.Scope{FlowID: doc.ID, ExecutionID: rec.ID})

	if e.recorder != nil {
		if err := e.recorder.CreateExecution(ctx, rec); err != nil {
			e.log.Warn(ctx, "executor: create execution record failed: ", err)
		}
		if deps := tagDependencies(doc); len(deps) > 0 {
			if err := e.recorder.ReplaceTagDependencies(ctx, doc.ID, deps); err != nil {
				e.log.Warn(ctx, "executor: replace tag dependencies failed: ", err)
			}
		}
	}

	inputs := execctx.NewSingleShotInputs(doc)
	services := e.services
	services.Inputs = inputs
	flowState := execctx.NewMapFlowState(doc.StaticData)

	runErr := e.walk(ctx, doc, plan, services, flowState, inputs, rec)

	rec.CompletedAt = time.Now().UTC()
	if runErr != nil {
		rec.Status = flow.StatusFailed
		rec.ErrorLog = append(rec.ErrorLog, runErr.Error())
	} else {
		rec.Status = flow.StatusCompleted
	}

	if e.recorder != nil {
		if err := e.recorder.CompleteExecution(ctx, rec); err != nil {
			e.log.Warn(ctx, "executor: complete execution record failed: ", err)
		}
	}

	return rec, runErr
}

// walk runs every node in the plan's order, recording outputs as it goes,
// and stops early on the first node that fails while its onError policy is
// "stop".
func (e *Executor) walk(
	ctx context.Context,
	doc *flow.Document,
	plan scheduler.Plan,
	services execctx.Services,
	flowState *execctx.MapFlowState,
	inputs *execctx.SingleShotInputs,
	rec *flow.ExecutionRecord,
) error {
	for _, nodeID := range plan.Order {
		node, ok := doc.NodeByID(nodeID)
		if !ok {
			continue
		}

		if pinned, ok := plan.Pinned[nodeID]; ok {
			out := flow.NodeOutput{
				Value:       pinned.Value.Raw(),
				Quality:     uint8(pinned.Quality),
				StartedAt:   time.Now().UTC(),
				CompletedAt: time.Now().UTC(),
			}
			rec.NodeOutputs[nodeID] = out
			inputs.Record(nodeID, out)
			continue
		}

		out, execErr := e.executeNode(ctx, node, services, flowState, doc.ID, rec.ID)
		rec.NodeOutputs[nodeID] = out
		inputs.Record(nodeID, out)

		if execErr == nil {
			continue
		}

		if errorPolicy(node) == onErrorStop {
			return execErr
		}
	}
	return nil
}

func (e *Executor) executeNode(
	ctx context.Context,
	node flow.Node,
	services execctx.Services,
	flowState *execctx.MapFlowState,
	flowID, executionID string,
) (flow.NodeOutput, error) {
	nodeCtx := obslog.WithScope(ctx, obslog.Scope{FlowID: flowID, ExecutionID: executionID, NodeID: node.ID, NodeType: node.Type})

	instance, err := e.registry.GetInstance(node.Type)
	if err != nil {
		return errorOutput(err), err
	}
	if configurable, ok := instance.(registry.Configurable); ok {
		if err := configurable.Configure(node.Data); err != nil {
			return errorOutput(err), err
		}
	}

	ectx := execctx.New(services, flowState, node.ID, node.Type)

	started := time.Now().UTC()
	if err := e.registry.ValidateNode(nodeCtx, instance, ectx); err != nil {
		return errorOutput(err), err
	}

	result, err := instance.Execute(nodeCtx, ectx)
	completed := time.Now().UTC()

	out := flow.NodeOutput{
		Value:         result.Value,
		Quality:       result.Quality,
		StartedAt:     started,
		CompletedAt:   completed,
		ExecutionTime: completed.Sub(started).Milliseconds(),
	}
	if logSource, ok := instance.(registry.LogSource); ok {
		out.Logs = logSource.GetLogMessages()
	}
	if err != nil {
		out.Error = err.Error()
		e.log.Error(nodeCtx, err, "executor: node execution failed")
		return out, err
	}
	return out, nil
}

func errorOutput(err error) flow.NodeOutput {
	now := time.Now().UTC()
	return flow.NodeOutput{Error: err.Error(), StartedAt: now, CompletedAt: now}
}

// errorPolicy reads a node's onError property, defaulting to "stop" per
// spec.md §4.9.
func errorPolicy(node flow.Node) string {
	if v, ok := node.Data["onError"].(string); ok && v != "" {
		return v
	}
	return onErrorStop
}

// tagDependencies scans a document's tag-input/tag-output nodes and builds
// the (flow, tag, node, direction) rows the tag-dependency index persists,
// per spec.md §4.9.
func tagDependencies(doc *flow.Document) []TagDependency {
	var deps []TagDependency
	for _, n := range doc.Nodes {
		tagID, ok := n.Data["tagId"].(string)
		if !ok || tagID == "" {
			continue
		}
		direction := "read"
		if n.Type == "tag-output" {
			direction = "write"
		}
		deps = append(deps, TagDependency{FlowID: doc.ID, TagID: tagID, NodeID: n.ID, Direction: direction})
	}
	return deps
}
