package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Ruleset represents a row in the rulesets table: one member selector
// list per project, with its polarity, optional capability tag, and the
// declared type graph the selectors resolve against.
type Ruleset struct {
	ID            string
	ProjectID     string
	Polarity      string          // "allow" or "deny"
	CapabilityTag string          // "" = no tag override
	Selectors     string          // selector list, one entry per line
	TypeGraph     json.RawMessage // JSONB type graph document
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReplaceRulesetParams holds fields for a full ruleset replace. The
// caller is expected to have validated the selector list and type graph
// before writing; the store persists them as given.
type ReplaceRulesetParams struct {
	Polarity      string
	CapabilityTag string
	Selectors     string
	TypeGraph     json.RawMessage
}

// GetRuleset returns the ruleset for a project, or nil if not found.
func (s *Store) GetRuleset(ctx context.Context, projectID string) (*Ruleset, error) {
	var rs Ruleset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, polarity, capability_tag, selectors, type_graph, created_at, updated_at
		FROM rulesets WHERE project_id = $1`, projectID,
	).Scan(&rs.ID, &rs.ProjectID, &rs.Polarity, &rs.CapabilityTag, &rs.Selectors,
		&rs.TypeGraph, &rs.CreatedAt, &rs.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetRuleset: %w", err)
	}
	return &rs, nil
}

// ReplaceRuleset fully replaces a project's ruleset.
func (s *Store) ReplaceRuleset(ctx context.Context, projectID string, params ReplaceRulesetParams) (*Ruleset, error) {
	tg := params.TypeGraph
	if tg == nil {
		tg = json.RawMessage(`{"types":[]}`)
	}

	var rs Ruleset
	err := s.db.QueryRowContext(ctx, `
		UPDATE rulesets SET
			polarity       = $2,
			capability_tag = $3,
			selectors      = $4,
			type_graph     = $5,
			updated_at     = now()
		WHERE project_id = $1
		RETURNING id, project_id, polarity, capability_tag, selectors, type_graph, created_at, updated_at`,
		projectID, params.Polarity, params.CapabilityTag, params.Selectors, tg,
	).Scan(&rs.ID, &rs.ProjectID, &rs.Polarity, &rs.CapabilityTag, &rs.Selectors,
		&rs.TypeGraph, &rs.CreatedAt, &rs.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ReplaceRuleset: %w", err)
	}
	return &rs, nil
}
