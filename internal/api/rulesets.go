package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/memberguard/memberguard/internal/policy"
	"github.com/memberguard/memberguard/internal/selector"
	"github.com/memberguard/memberguard/internal/store"
	"github.com/memberguard/memberguard/internal/typegraph"
	"go.uber.org/zap"
)

func (d *Dependencies) handleGetRuleset(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	rs, err := d.Store.GetRuleset(r.Context(), projectID)
	if err != nil {
		d.Logger.Error("failed to get ruleset", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get ruleset"})
		return
	}
	if rs == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Ruleset not found."})
		return
	}
	writeJSON(w, http.StatusOK, rulesetToResp(rs))
}

// handleReplaceRuleset implements PUT ruleset. The whole ruleset is
// validated before anything is stored: an invalid polarity, a broken
// type graph or a malformed selector entry rejects the request, so a
// stored ruleset always compiles. Well-formed selectors that reference
// unknown types or members are accepted — they carry no matching power
// — and reported back so misspellings are visible.
func (d *Dependencies) handleReplaceRuleset(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")

	var req ReplaceRulesetReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	if _, err := policy.ParsePolarity(req.Polarity); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "polarity must be 'allow' or 'deny'"})
		return
	}

	rawGraph := req.TypeGraph
	if rawGraph == nil {
		rawGraph = json.RawMessage(`{"types":[]}`)
	}
	graph, err := typegraph.Load(rawGraph)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}

	sels, err := selector.ParseLines(strings.Split(req.Selectors, "\n"), graph)
	if err != nil {
		// Hard parse error — a malformed list must never be stored.
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}

	unresolved := make([]UnresolvedSelectorResp, 0)
	for _, s := range sels {
		if s.Unresolved() {
			unresolved = append(unresolved, UnresolvedSelectorResp{
				Selector: s.Text(),
				Error:    s.Err().Error(),
			})
		}
	}

	rs, err := d.Store.ReplaceRuleset(r.Context(), projectID, store.ReplaceRulesetParams{
		Polarity:      req.Polarity,
		CapabilityTag: req.CapabilityTag,
		Selectors:     req.Selectors,
		TypeGraph:     rawGraph,
	})
	if err != nil {
		d.Logger.Error("failed to replace ruleset", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to replace ruleset"})
		return
	}
	if rs == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Ruleset not found."})
		return
	}

	writeJSON(w, http.StatusOK, ReplaceRulesetResp{
		RulesetResp:         rulesetToResp(rs),
		UnresolvedSelectors: unresolved,
	})
}

func rulesetToResp(rs *store.Ruleset) RulesetResp {
	return RulesetResp{
		ID:            rs.ID,
		ProjectID:     rs.ProjectID,
		Polarity:      rs.Polarity,
		CapabilityTag: rs.CapabilityTag,
		Selectors:     rs.Selectors,
		TypeGraph:     rs.TypeGraph,
		CreatedAt:     rs.CreatedAt,
		UpdatedAt:     rs.UpdatedAt,
	}
}
