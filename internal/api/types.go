package api

import (
	"encoding/json"
	"time"
)

// --- POST /v1/access request/response ---

// IdentityReq carries optional caller identity for audit events.
type IdentityReq struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`
}

// MemberReq names the member being accessed. Name is empty for
// constructors; ParamTypes is absent for fields. Parameter type names
// may carry "[]" array suffixes.
type MemberReq struct {
	Kind       string   `json:"kind"` // "method", "constructor" or "field"
	Name       string   `json:"name,omitempty"`
	ParamTypes []string `json:"param_types,omitempty"`
}

// CheckRequest is the JSON body for POST /v1/access.
type CheckRequest struct {
	ContextType string       `json:"context_type"`
	Member      MemberReq    `json:"member"`
	Identity    *IdentityReq `json:"identity,omitempty"`
	TraceID     string       `json:"trace_id,omitempty"`
}

// CheckResponse is the verdict for one member access.
type CheckResponse struct {
	Exposed   bool    `json:"exposed"`
	Verdict   string  `json:"verdict"`
	RequestID string  `json:"request_id"`
	IsShadow  bool    `json:"is_shadow"`
	Reason    *string `json:"reason"`
	LatencyMs float64 `json:"latency_ms"`
}

// --- Project CRUD ---

// CreateProjectReq is the JSON body for POST /api/memberguard/projects.
type CreateProjectReq struct {
	Name string `json:"name"`
}

// CreateProjectResp includes the plaintext API key (shown once).
type CreateProjectResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKey       string    `json:"api_key"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	Mode         string    `json:"mode"`
	CreatedAt    time.Time `json:"created_at"`
}

// UpdateProjectReq is the JSON body for PATCH /api/memberguard/projects/{id}.
type UpdateProjectReq struct {
	Name *string `json:"name,omitempty"`
	Mode *string `json:"mode,omitempty"`
}

// ProjectResp is a project without its plaintext key.
type ProjectResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	Mode         string    `json:"mode"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RotateKeyResp includes the new plaintext API key (shown once).
type RotateKeyResp struct {
	APIKey       string `json:"api_key"`
	APIKeyPrefix string `json:"api_key_prefix"`
}

// --- Ruleset ---

// ReplaceRulesetReq is the JSON body for PUT ruleset. The selector list
// is given as raw text, one entry per line; blank lines and lines
// starting with "#" or "//" are ignored.
type ReplaceRulesetReq struct {
	Polarity      string          `json:"polarity"`
	CapabilityTag string          `json:"capability_tag,omitempty"`
	Selectors     string          `json:"selectors"`
	TypeGraph     json.RawMessage `json:"type_graph,omitempty"`
}

// RulesetResp is a project's stored ruleset.
type RulesetResp struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	Polarity      string          `json:"polarity"`
	CapabilityTag string          `json:"capability_tag"`
	Selectors     string          `json:"selectors"`
	TypeGraph     json.RawMessage `json:"type_graph"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// UnresolvedSelectorResp reports a well-formed selector entry whose
// type or member doesn't exist in the type graph. These are accepted
// (they simply never match) but surfaced so misspellings are visible.
type UnresolvedSelectorResp struct {
	Selector string `json:"selector"`
	Error    string `json:"error"`
}

// ReplaceRulesetResp is the stored ruleset plus resolution diagnostics.
type ReplaceRulesetResp struct {
	RulesetResp
	UnresolvedSelectors []UnresolvedSelectorResp `json:"unresolved_selectors"`
}

// --- Access Events ---

// AccessEventResp is one audit trail entry.
type AccessEventResp struct {
	RequestID     string    `json:"request_id"`
	ProjectID     string    `json:"project_id"`
	ContextType   string    `json:"context_type"`
	MemberKind    string    `json:"member_kind"`
	MemberName    *string   `json:"member_name"`
	ParamTypes    []string  `json:"param_types"`
	Verdict       string    `json:"verdict"`
	IsShadow      bool      `json:"is_shadow"`
	Matched       bool      `json:"matched"`
	Polarity      string    `json:"polarity"`
	Reason        *string   `json:"reason"`
	UserID        *string   `json:"user_id"`
	SessionID     *string   `json:"session_id"`
	TenantID      *string   `json:"tenant_id"`
	ClientTraceID *string   `json:"client_trace_id"`
	LatencyMs     float32   `json:"latency_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventListResp is a page of events.
type EventListResp struct {
	Events   []AccessEventResp `json:"events"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// --- Analytics ---

// AnalyticsResp aggregates a project's access activity.
type AnalyticsResp struct {
	Summary            SummaryStatsResp       `json:"summary"`
	DeniesOverTime     []TimeSeriesBucketResp `json:"denies_over_time"`
	TopDeniedMembers   []MemberCountResp      `json:"top_denied_members"`
	TopContextTypes    []TypeCountResp        `json:"top_context_types"`
	ShadowReport       ShadowReportResp       `json:"shadow_report"`
	LatencyPercentiles LatencyPercentilesResp `json:"latency_percentiles"`
}

// SummaryStatsResp holds aggregate counts.
type SummaryStatsResp struct {
	TotalChecks int `json:"total_checks"`
	Denies      int `json:"denies"`
	Allows      int `json:"allows"`
}

// TimeSeriesBucketResp holds an hourly count.
type TimeSeriesBucketResp struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// MemberCountResp holds one denied member and its count.
type MemberCountResp struct {
	ContextType string `json:"context_type"`
	MemberKind  string `json:"member_kind"`
	MemberName  string `json:"member_name"`
	Count       int    `json:"count"`
}

// TypeCountResp holds a context type and its count.
type TypeCountResp struct {
	ContextType string `json:"context_type"`
	Count       int    `json:"count"`
}

// ShadowReportResp holds shadow mode analysis.
type ShadowReportResp struct {
	Total     int `json:"total"`
	WouldDeny int `json:"would_deny"`
}

// LatencyPercentilesResp holds latency percentiles.
type LatencyPercentilesResp struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
