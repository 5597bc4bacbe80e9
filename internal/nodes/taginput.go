package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/quality"
	"github.com/tagflow/engine/internal/registry"
	"github.com/tagflow/engine/internal/tagvalue"
)

const liveOnlyToleranceSeconds = 1

// TagInput reads a tag by id, preferring the in-memory runtime cache and
// falling back to the time-series store on a miss or an age failure.
// MaxDataAge is in seconds: -1 accepts any age, 0 requires a live value
// (within a 1s tolerance), N>0 requires age <= N.
type TagInput struct {
	TagID      string
	MaxDataAge int
}

func NewTagInput() registry.Instance {
	return &TagInput{MaxDataAge: -1}
}

func (t *TagInput) Description() registry.Description {
	return registry.Description{
		SchemaVersion: 1,
		Name:          "tag-input",
		DisplayName:   "Tag Input",
		Version:       "1.0.0",
		Category:      "io",
		Inputs:        []registry.Port{},
		Outputs:       []registry.Port{{Name: "output", Type: registry.TypeAny}},
		Properties: []registry.Property{
			{Name: "tagId", Type: "string", Required: true},
			{Name: "maxDataAge", Type: "number", DefaultValue: -1},
		},
	}
}

func (t *TagInput) Configure(data map[string]any) error {
	tagID, _ := data["tagId"].(string)
	if tagID == "" {
		return flowerr.New(flowerr.Validation, "tag-input: tagId is required")
	}
	t.TagID = tagID
	if age, ok := numberProperty(data["maxDataAge"]); ok {
		t.MaxDataAge = int(age)
	}
	return nil
}

func (t *TagInput) Execute(ctx context.Context, ectx registry.ExecContext) (registry.Result, error) {
	if tv, ok := ectx.RuntimeTagValue(t.TagID); ok {
		age := time.Since(tv.EffectiveTimestamp())
		if t.ageAcceptable(age) {
			return resultFromTagValue(tv), nil
		}
	}

	descriptor, err := t.lookupDescriptor(ctx, ectx)
	if err != nil {
		return registry.Result{}, err
	}

	row, found, err := t.queryLatest(ctx, ectx, descriptor)
	if err != nil {
		return registry.Result{}, err
	}
	if !found {
		return registry.Result{Value: nil, Quality: uint8(quality.Bad)}, nil
	}

	tv, err := tagvalue.Decode(row)
	if err != nil {
		return registry.Result{}, flowerr.Wrap(flowerr.Fatal, err, "tag-input: decode stored row").WithNode(ectx.NodeID())
	}

	age := time.Since(tv.EffectiveTimestamp())
	if !t.ageAcceptable(age) {
		return registry.Result{
			Value:   nil,
			Quality: uint8(quality.Bad),
			Inputs: map[string]any{
				"stale":      true,
				"ageSeconds": age.Seconds(),
			},
		}, nil
	}

	return resultFromTagValue(tv), nil
}

func (t *TagInput) ageAcceptable(age time.Duration) bool {
	switch {
	case t.MaxDataAge < 0:
		return true
	case t.MaxDataAge == 0:
		return age <= liveOnlyToleranceSeconds*time.Second
	default:
		return age <= time.Duration(t.MaxDataAge)*time.Second
	}
}

func (t *TagInput) lookupDescriptor(ctx context.Context, ectx registry.ExecContext) (tagvalue.TagDescriptor, error) {
	rows, err := ectx.Query(ctx, "SELECT tag_id, tag_path, tag_name, data_type, connection_id, driver_type FROM tag_metadata WHERE tag_id = $1", t.TagID)
	if err != nil {
		return tagvalue.TagDescriptor{}, flowerr.Wrap(flowerr.Fatal, err, "tag-input: lookup tag descriptor").WithNode(ectx.NodeID())
	}
	if len(rows) == 0 {
		return tagvalue.TagDescriptor{}, flowerr.Newf(flowerr.NotFound, "tag-input: tag %q does not exist", t.TagID).WithNode(ectx.NodeID())
	}
	return descriptorFromRow(rows[0]), nil
}

func (t *TagInput) queryLatest(ctx context.Context, ectx registry.ExecContext, descriptor tagvalue.TagDescriptor) (tagvalue.StoredRow, bool, error) {
	table := "tag_values"
	if descriptor.DriverType == tagvalue.DriverSystem {
		table = "system_metrics"
	}
	sql := fmt.Sprintf("SELECT ts, quality, v_num, v_text, v_json FROM %s WHERE tag_id = $1 ORDER BY ts DESC LIMIT 1", table)
	rows, err := ectx.TSDBQuery(ctx, sql, t.TagID)
	if err != nil {
		return tagvalue.StoredRow{}, false, flowerr.Wrap(flowerr.Fatal, err, "tag-input: query latest value").WithNode(ectx.NodeID())
	}
	if len(rows) == 0 {
		return tagvalue.StoredRow{}, false, nil
	}
	return storedRowFromRow(rows[0]), true, nil
}

func descriptorFromRow(row registry.Row) tagvalue.TagDescriptor {
	d := tagvalue.TagDescriptor{}
	if v, ok := row["tag_id"].(string); ok {
		d.TagID = v
	}
	if v, ok := row["tag_path"].(string); ok {
		d.TagPath = v
	}
	if v, ok := row["tag_name"].(string); ok {
		d.TagName = v
	}
	if v, ok := row["data_type"].(string); ok {
		d.DataType = tagvalue.DataType(v)
	}
	if v, ok := row["connection_id"].(string); ok {
		d.ConnectionID = v
	}
	if v, ok := row["driver_type"].(string); ok {
		d.DriverType = tagvalue.DriverType(v)
	}
	return d
}

func storedRowFromRow(row registry.Row) tagvalue.StoredRow {
	sr := tagvalue.StoredRow{}
	if v, ok := row["ts"].(time.Time); ok {
		sr.Timestamp = v
	}
	if v, ok := row["quality"]; ok {
		if q, ok := toFloat(v); ok {
			sr.Quality = quality.Code(q)
		}
	}
	if v, ok := row["v_num"].(*float64); ok {
		sr.Num = v
	} else if v, ok := toFloat(row["v_num"]); ok {
		sr.Num = &v
	}
	if v, ok := row["v_text"].(string); ok {
		sr.Text = &v
	}
	if v, ok := row["v_json"].([]byte); ok {
		sr.JSON = v
	}
	return sr
}

func resultFromTagValue(tv tagvalue.TagValue) registry.Result {
	return registry.Result{
		Value:   tv.Value.Raw(),
		Quality: uint8(tv.Quality),
	}
}
