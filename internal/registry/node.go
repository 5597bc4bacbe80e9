// Package registry holds the pluggable table of node types: a name maps to
// a schema-validated description and a factory that produces instances.
// External libraries extend the table at runtime through the same
// Register call used for built-ins.
package registry

import (
	"context"

	"github.com/tagflow/engine/internal/tagvalue"
)

// SemanticType is the type carried by a node's declared input/output port.
type SemanticType string

const (
	TypeNumber  SemanticType = "number"
	TypeBoolean SemanticType = "boolean"
	TypeMain    SemanticType = "main"
	TypeAny     SemanticType = "any"
)

// Port describes one declared input or output of a node type.
type Port struct {
	Name     string       `json:"name"`
	Type     SemanticType `json:"type"`
	Optional bool         `json:"optional,omitempty"`
}

// Property describes one entry of a node type's parameter map.
type Property struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName,omitempty"`
	Type         string `json:"type"`
	DefaultValue any    `json:"default,omitempty"`
	Required     bool   `json:"required,omitempty"`
}

// IORule conditions a node's effective input/output shape on a property
// value, e.g. the Math node's operation switching its declared input count.
type IORule struct {
	When    map[string]any `json:"when"`
	Inputs  []Port         `json:"inputs,omitempty"`
	Outputs []Port         `json:"outputs,omitempty"`
}

// Description is the schema-validated, immutable contract for a node type.
type Description struct {
	SchemaVersion int            `json:"schemaVersion"`
	Name          string         `json:"name"`
	DisplayName   string         `json:"displayName"`
	Version       string         `json:"version"`
	Category      string         `json:"category"`
	Inputs        []Port         `json:"inputs"`
	Outputs       []Port         `json:"outputs"`
	Properties    []Property     `json:"properties"`
	IORules       []IORule       `json:"ioRules,omitempty"`
	Visual        map[string]any `json:"visual,omitempty"`
	ConfigUI      map[string]any `json:"configUI,omitempty"`
}

// Result is what an Instance's Execute returns: a TagValue extended with
// node-execution metadata.
type Result struct {
	Value         any
	Quality       uint8
	Operation     string
	Inputs        map[string]any
	ExecutionTime int64 // milliseconds
	Error         error
}

// Instance is one configured node within a flow, the minimal contract every
// built-in and library-provided node type implements.
type Instance interface {
	Description() Description
	Execute(ctx context.Context, ectx ExecContext) (Result, error)
}

// Validator is implemented by node instances whose configuration needs a
// semantic check beyond the registry's structural schema validation.
type Validator interface {
	Validate(ctx context.Context, ectx ExecContext) error
}

// LogSource is implemented by node instances that accumulate log lines
// during Execute (the Script node's console capture, for instance).
type LogSource interface {
	GetLogMessages() []string
}

// Configurable is implemented by node instances that accept the node's
// property map (the `data` a flow document stores alongside each node) once,
// before Validate/Execute are ever called.
type Configurable interface {
	Configure(data map[string]any) error
}

// Row is one result row from a Query/TSDBQuery call, column name to value.
type Row map[string]any

// ExecContext is the per-node, per-invocation facade an Instance consumes.
// Defined here (rather than in a separate execution-context package) to
// avoid a dependency cycle, since the executor's concrete context must
// itself depend on registry to look node types up. It intentionally never
// exposes a raw DB handle or bus connection: every side effect goes through
// one of these methods so cancellation, timeouts, and auditing attach
// uniformly regardless of which node type is calling.
type ExecContext interface {
	GetInputValue(port string) (any, bool)
	GetInputCount() int

	// Query accesses the control database for metadata lookups.
	Query(ctx context.Context, sql string, args ...any) ([]Row, error)
	// TSDBQuery accesses the time-series database for tag history/values.
	TSDBQuery(ctx context.Context, sql string, args ...any) ([]Row, error)
	// Publish is a fire-and-forget send to the telemetry bus.
	Publish(ctx context.Context, subject string, payload any) error
	// RuntimeTagValue is the zero-latency in-memory cache of recent tag
	// values; ok is false when the tag has never been cached or the
	// context has no runtime cache attached.
	RuntimeTagValue(tagID string) (tagvalue.TagValue, bool)

	NodeID() string
	NodeType() string
}

// Factory constructs a fresh, unconfigured Instance. The registry calls it
// once at registration time to read the type's Description and caches that
// instance for zero-cost GetDescription lookups, then again per node for
// real executions.
type Factory func() Instance
