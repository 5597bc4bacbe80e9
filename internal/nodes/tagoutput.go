package nodes

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/quality"
	"github.com/tagflow/engine/internal/registry"
	"github.com/tagflow/engine/internal/tagvalue"
)

// TagOutputStrategy is the closed set of write strategies.
type TagOutputStrategy string

const (
	WriteAlways   TagOutputStrategy = "always"
	WriteOnChange TagOutputStrategy = "on-change"
	WriteNever    TagOutputStrategy = "never"
)

// DeadbandMode selects how a deadband threshold is interpreted.
type DeadbandMode string

const (
	DeadbandAbsolute DeadbandMode = "absolute"
	DeadbandPercent  DeadbandMode = "percent"
)

// TagOutput writes its "value" input to an INTERNAL tag and publishes the
// write to the telemetry bus. Non-INTERNAL destinations are a hard error.
// State (last value/quality/write time) is private to the Instance, the
// same per-node-instance scoping Gate relies on.
type TagOutput struct {
	TagID             string
	WriteStrategy     TagOutputStrategy
	Deadband          float64
	DeadbandMode      DeadbandMode
	HeartbeatSeconds  float64
	TestDisableWrites bool

	hasPrevious   bool
	prevValue     float64
	prevQuality   uint8
	lastWriteTime time.Time
}

func NewTagOutput() registry.Instance {
	return &TagOutput{WriteStrategy: WriteAlways, DeadbandMode: DeadbandAbsolute}
}

func (t *TagOutput) Description() registry.Description {
	return registry.Description{
		SchemaVersion: 1,
		Name:          "tag-output",
		DisplayName:   "Tag Output",
		Version:       "1.0.0",
		Category:      "io",
		Inputs:        []registry.Port{{Name: "value", Type: registry.TypeAny}},
		Outputs:       []registry.Port{{Name: "output", Type: registry.TypeAny}},
		Properties: []registry.Property{
			{Name: "tagId", Type: "string", Required: true},
			{Name: "writeStrategy", Type: "string", DefaultValue: string(WriteAlways)},
			{Name: "deadband", Type: "number", DefaultValue: 0},
			{Name: "deadbandMode", Type: "string", DefaultValue: string(DeadbandAbsolute)},
			{Name: "heartbeatSeconds", Type: "number", DefaultValue: 0},
			{Name: "test_disable_writes", Type: "boolean", DefaultValue: false},
		},
	}
}

func (t *TagOutput) Configure(data map[string]any) error {
	tagID, _ := data["tagId"].(string)
	if tagID == "" {
		return flowerr.New(flowerr.Validation, "tag-output: tagId is required")
	}
	t.TagID = tagID
	if s, ok := data["writeStrategy"].(string); ok && s != "" {
		t.WriteStrategy = TagOutputStrategy(s)
	}
	if db, ok := numberProperty(data["deadband"]); ok {
		t.Deadband = db
	}
	if m, ok := data["deadbandMode"].(string); ok && m != "" {
		t.DeadbandMode = DeadbandMode(m)
	}
	if hb, ok := numberProperty(data["heartbeatSeconds"]); ok {
		t.HeartbeatSeconds = hb
	}
	if flag, ok := data["test_disable_writes"].(bool); ok {
		t.TestDisableWrites = flag
	}
	return nil
}

func (t *TagOutput) Execute(ctx context.Context, ectx registry.ExecContext) (registry.Result, error) {
	raw, _ := ectx.GetInputValue("value")
	value, q := quality.Extract(raw)

	descriptor, err := t.lookupDescriptor(ctx, ectx)
	if err != nil {
		return registry.Result{}, err
	}
	if !descriptor.DriverType.Writable() {
		return registry.Result{}, flowerr.Newf(flowerr.Validation, "tag-output: tag %q is %s, only INTERNAL tags are writable", t.TagID, descriptor.DriverType).WithNode(ectx.NodeID())
	}

	numeric, isNumeric := toFloat(value)
	write := t.shouldWrite(isNumeric, numeric, uint8(q))

	if write && !t.TestDisableWrites {
		payload := map[string]any{
			"connection_id": descriptor.ConnectionID,
			"tag_id":        t.TagID,
			"ts":            time.Now().UTC(),
			"v":             value,
			"q":             uint8(q),
		}
		subject := fmt.Sprintf("telemetry.raw.%s", descriptor.ConnectionID)
		if err := ectx.Publish(ctx, subject, payload); err != nil {
			// Publishing is fire-and-forget: a bus error never fails the
			// node, it only fails to be observed downstream.
			_ = err
		}
		t.lastWriteTime = time.Now()
	}

	if isNumeric {
		t.hasPrevious = true
		t.prevValue = numeric
		t.prevQuality = uint8(q)
	}

	return registry.Result{Value: value, Quality: uint8(q)}, nil
}

func (t *TagOutput) shouldWrite(isNumeric bool, value float64, q uint8) bool {
	switch t.WriteStrategy {
	case WriteAlways:
		return true
	case WriteNever:
		return false
	case WriteOnChange:
		if !t.hasPrevious {
			return true
		}
		if q != t.prevQuality {
			return true
		}
		if t.heartbeatExceeded() {
			return true
		}
		if !isNumeric {
			return true
		}
		return t.exceedsDeadband(value)
	default:
		return true
	}
}

func (t *TagOutput) heartbeatExceeded() bool {
	if t.HeartbeatSeconds <= 0 || t.lastWriteTime.IsZero() {
		return false
	}
	return time.Since(t.lastWriteTime) >= time.Duration(t.HeartbeatSeconds*float64(time.Second))
}

func (t *TagOutput) exceedsDeadband(value float64) bool {
	diff := math.Abs(value - t.prevValue)
	if t.DeadbandMode == DeadbandPercent {
		if t.prevValue == 0 {
			return diff != 0
		}
		return (diff/math.Abs(t.prevValue))*100 >= t.Deadband
	}
	return diff >= t.Deadband
}

func (t *TagOutput) lookupDescriptor(ctx context.Context, ectx registry.ExecContext) (tagvalue.TagDescriptor, error) {
	rows, err := ectx.Query(ctx, "SELECT tag_id, tag_path, tag_name, data_type, connection_id, driver_type FROM tag_metadata WHERE tag_id = $1", t.TagID)
	if err != nil {
		return tagvalue.TagDescriptor{}, flowerr.Wrap(flowerr.Fatal, err, "tag-output: lookup tag descriptor").WithNode(ectx.NodeID())
	}
	if len(rows) == 0 {
		return tagvalue.TagDescriptor{}, flowerr.Newf(flowerr.NotFound, "tag-output: tag %q does not exist", t.TagID).WithNode(ectx.NodeID())
	}
	return descriptorFromRow(rows[0]), nil
}
