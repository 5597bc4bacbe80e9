package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/tagflow/engine/internal/flow"
	"github.com/tagflow/engine/internal/flowerr"
)

// flowRow mirrors the flows table named in spec.md §6.
type flowRow struct {
	ID         string `db:"id"`
	Definition []byte `db:"definition"`
	Deployed   bool   `db:"deployed"`
	StaticData []byte `db:"static_data"`
}

func (r flowRow) toDocument() (*flow.Document, error) {
	var doc flow.Document
	if err := json.Unmarshal(r.Definition, &doc); err != nil {
		return nil, flowerr.Wrap(flowerr.Fatal, err, "decode flow definition")
	}
	doc.ID = r.ID
	if len(r.StaticData) > 0 {
		if err := json.Unmarshal(r.StaticData, &doc.StaticData); err != nil {
			return nil, flowerr.Wrap(flowerr.Fatal, err, "decode flow static data")
		}
	}
	return &doc, nil
}

// GetFlow loads one flow document by id.
func (s *Store) GetFlow(ctx context.Context, flowID string) (*flow.Document, error) {
	var row flowRow
	err := s.control.GetContext(ctx, &row, `SELECT id, definition, deployed, static_data FROM flows WHERE id = $1`, flowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, flowerr.Newf(flowerr.NotFound, "flow %q not found", flowID)
	}
	if err != nil {
		return nil, flowerr.Wrap(flowerr.Transient, err, "get flow")
	}
	return row.toDocument()
}

// SaveFlow upserts a flow document's nodes/edges/pinData and static data.
// deployed is left untouched by a plain save; use Deploy/Undeploy.
func (s *Store) SaveFlow(ctx context.Context, doc *flow.Document) error {
	definition, err := json.Marshal(doc)
	if err != nil {
		return flowerr.Wrap(flowerr.Validation, err, "encode flow definition")
	}
	staticData, err := json.Marshal(doc.StaticData)
	if err != nil {
		return flowerr.Wrap(flowerr.Validation, err, "encode flow static data")
	}
	_, err = s.control.ExecContext(ctx, `
		INSERT INTO flows (id, definition, static_data, deployed)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (id) DO UPDATE SET definition = EXCLUDED.definition, static_data = EXCLUDED.static_data
	`, doc.ID, definition, staticData)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "save flow")
	}
	return nil
}

// ListFlows returns every flow id along with its deployed flag.
func (s *Store) ListFlows(ctx context.Context) (map[string]bool, error) {
	rows, err := s.control.QueryContext(ctx, `SELECT id, deployed FROM flows`)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.Transient, err, "list flows")
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		var deployed bool
		if err := rows.Scan(&id, &deployed); err != nil {
			return nil, flowerr.Wrap(flowerr.Transient, err, "scan flow row")
		}
		out[id] = deployed
	}
	return out, rows.Err()
}

// ListDeployedFlows returns every flow document currently marked deployed,
// the set the scan engine loads at startup.
func (s *Store) ListDeployedFlows(ctx context.Context) ([]*flow.Document, error) {
	var rows []flowRow
	if err := s.control.SelectContext(ctx, &rows, `SELECT id, definition, deployed, static_data FROM flows WHERE deployed = true`); err != nil {
		return nil, flowerr.Wrap(flowerr.Transient, err, "list deployed flows")
	}
	docs := make([]*flow.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Deploy marks a flow deployed.
func (s *Store) Deploy(ctx context.Context, flowID string) error {
	return s.setDeployed(ctx, flowID, true)
}

// Undeploy marks a flow not deployed.
func (s *Store) Undeploy(ctx context.Context, flowID string) error {
	return s.setDeployed(ctx, flowID, false)
}

func (s *Store) setDeployed(ctx context.Context, flowID string, deployed bool) error {
	res, err := s.control.ExecContext(ctx, `UPDATE flows SET deployed = $2 WHERE id = $1`, flowID, deployed)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "set flow deployed state")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return flowerr.Newf(flowerr.NotFound, "flow %q not found", flowID)
	}
	return nil
}

// DeleteFlow removes a flow document and its dependent rows.
func (s *Store) DeleteFlow(ctx context.Context, flowID string) error {
	_, err := s.control.ExecContext(ctx, `DELETE FROM flows WHERE id = $1`, flowID)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "delete flow")
	}
	return nil
}

// SaveFlowState persists a flow's $flow.state snapshot back to static_data,
// called by the executor/scan engine after a script node mutates it.
func (s *Store) SaveFlowState(ctx context.Context, flowID string, state map[string]any) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return flowerr.Wrap(flowerr.Validation, err, "encode flow state")
	}
	_, err = s.control.ExecContext(ctx, `UPDATE flows SET static_data = $2 WHERE id = $1`, flowID, encoded)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "save flow state")
	}
	return nil
}
