// Package execctx is the concrete registry.ExecContext implementation every
// node runs against. It is a thin facade wiring a node's input resolution
// (single-shot or continuous), the control/time-series store, the telemetry
// bus, and the runtime cache into the ExecContext surface nodes depend on.
package execctx

import (
	"context"

	"github.com/tagflow/engine/internal/registry"
	"github.com/tagflow/engine/internal/sandbox"
	"github.com/tagflow/engine/internal/tagvalue"
)

// Store is the subset of internal/store's surface a node's Query/TSDBQuery
// calls go through.
type Store interface {
	Query(ctx context.Context, sql string, args ...any) ([]registry.Row, error)
	TSDBQuery(ctx context.Context, sql string, args ...any) ([]registry.Row, error)
}

// Cache is the subset of internal/runtimecache.Cache a Context needs.
type Cache interface {
	Get(tagID string) (tagvalue.TagValue, bool)
}

// Publisher is the subset of internal/bus a Context needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Services bundles the flow-invocation-wide collaborators a Context is built
// from; one Services is shared across every node in a single invocation (or,
// in continuous mode, across the scan engine's lifetime).
type Services struct {
	Store  Store
	Cache  Cache
	Bus    Publisher
	Inputs InputSource
	FS     sandbox.FS
}

// Context is the per-node registry.ExecContext. It is cheap to construct:
// the executor/scan engine builds one per node invocation from a shared
// Services and that node's identity and flow state.
type Context struct {
	services  Services
	flowState sandbox.FlowState
	nodeID    string
	nodeType  string
}

// New builds a Context for one node's execution.
func New(services Services, flowState sandbox.FlowState, nodeID, nodeType string) *Context {
	return &Context{services: services, flowState: flowState, nodeID: nodeID, nodeType: nodeType}
}

var _ registry.ExecContext = (*Context)(nil)

func (c *Context) GetInputValue(port string) (any, bool) {
	if c.services.Inputs == nil {
		return nil, false
	}
	return c.services.Inputs.Input(c.nodeID, port)
}

func (c *Context) GetInputCount() int {
	if c.services.Inputs == nil {
		return 0
	}
	return c.services.Inputs.InputCount(c.nodeID)
}

func (c *Context) Query(ctx context.Context, sql string, args ...any) ([]registry.Row, error) {
	if c.services.Store == nil {
		return nil, nil
	}
	return c.services.Store.Query(ctx, sql, args...)
}

func (c *Context) TSDBQuery(ctx context.Context, sql string, args ...any) ([]registry.Row, error) {
	if c.services.Store == nil {
		return nil, nil
	}
	return c.services.Store.TSDBQuery(ctx, sql, args...)
}

func (c *Context) Publish(ctx context.Context, subject string, payload any) error {
	if c.services.Bus == nil {
		return nil
	}
	return c.services.Bus.Publish(ctx, subject, payload)
}

func (c *Context) RuntimeTagValue(tagID string) (tagvalue.TagValue, bool) {
	if c.services.Cache == nil {
		return tagvalue.TagValue{}, false
	}
	return c.services.Cache.Get(tagID)
}

func (c *Context) NodeID() string   { return c.nodeID }
func (c *Context) NodeType() string { return c.nodeType }

// ScriptFlowState implements nodes.FlowStateProvider.
func (c *Context) ScriptFlowState() sandbox.FlowState { return c.flowState }

// ScriptFS implements nodes.FSProvider.
func (c *Context) ScriptFS() sandbox.FS { return c.services.FS }
