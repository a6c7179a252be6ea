package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/memberguard/memberguard/internal/member"
	"github.com/memberguard/memberguard/internal/policy"
	"github.com/memberguard/memberguard/internal/storage"
	"github.com/memberguard/memberguard/internal/typegraph"
)

// handleCheck implements POST /v1/access.
// Auth middleware has already validated the Bearer key, compiled the
// project's ruleset and injected the project.
func (d *Dependencies) handleCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CheckRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.ContextType == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "context_type is required"})
		return
	}
	switch req.Member.Kind {
	case "method", "field":
		if req.Member.Name == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "member.name is required for methods and fields"})
			return
		}
	case "constructor":
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "member.kind must be 'method', 'constructor' or 'field'"})
		return
	}

	proj := projectFromContext(r.Context())
	if proj == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing project context"})
		return
	}

	// A project whose ruleset failed to compile exposes nothing.
	if proj.Policy == nil {
		d.finishCheck(w, req, proj, start, false, false, "ruleset failed to compile: "+proj.RulesetErr)
		return
	}

	contextType, ok := proj.Graph.ResolveType(req.ContextType)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResp{
			Detail: fmt.Sprintf("unknown context type %q", req.ContextType)})
		return
	}

	m, err := resolveMember(proj.Graph, contextType, req.Member)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}

	decision := proj.Policy.ForType(contextType)
	var exposed bool
	switch mm := m.(type) {
	case member.Method:
		exposed = decision.IsMethodExposed(mm)
	case member.Constructor:
		exposed = decision.IsConstructorExposed(mm)
	case member.Field:
		exposed = decision.IsFieldExposed(mm)
	}

	// Under allow polarity an exposed member is one the list matched;
	// under deny polarity it's the other way around.
	matched := exposed
	if proj.Policy.Polarity() == policy.Deny {
		matched = !exposed
	}

	var reason string
	if !exposed {
		switch proj.Policy.Polarity() {
		case policy.Allow:
			reason = "not matched by allow list"
		case policy.Deny:
			reason = "matched by deny list"
		}
	}

	d.finishCheck(w, req, proj, start, exposed, matched, reason)
}

// finishCheck applies shadow mode, writes the audit event and responds.
// The event always records the real verdict.
func (d *Dependencies) finishCheck(
	w http.ResponseWriter,
	req CheckRequest,
	proj *authProject,
	start time.Time,
	exposed, matched bool,
	reason string,
) {
	realVerdict := "deny"
	if exposed {
		realVerdict = "allow"
	}

	responseExposed := exposed
	responseVerdict := realVerdict
	isShadow := false
	if proj.Mode == "shadow" && !exposed {
		isShadow = true
		responseExposed = true
		responseVerdict = "allow"
	}

	requestID := uuid.New().String()
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	// Fire-and-forget: write audit event to ClickHouse
	d.writeCheckEvent(req, proj, requestID, realVerdict, isShadow, matched, reason, float32(latencyMs))

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	writeJSON(w, http.StatusOK, CheckResponse{
		Exposed:   responseExposed,
		Verdict:   responseVerdict,
		RequestID: requestID,
		IsShadow:  isShadow,
		Reason:    reasonPtr,
		LatencyMs: latencyMs,
	})
}

// writeCheckEvent builds an AccessEvent and fires it to the async writer.
func (d *Dependencies) writeCheckEvent(
	req CheckRequest,
	proj *authProject,
	requestID, verdict string,
	isShadow, matched bool,
	reason string,
	latencyMs float32,
) {
	var userID, sessionID, tenantID string
	if req.Identity != nil {
		userID = req.Identity.UserID
		sessionID = req.Identity.SessionID
		tenantID = req.Identity.TenantID
	}

	d.Writer.Write(&storage.AccessEvent{
		RequestID:     requestID,
		ProjectID:     proj.ID,
		Timestamp:     time.Now(),
		ContextType:   req.ContextType,
		MemberKind:    req.Member.Kind,
		MemberName:    req.Member.Name,
		ParamTypes:    req.Member.ParamTypes,
		Verdict:       verdict,
		IsShadow:      isShadow,
		Matched:       matched,
		Polarity:      proj.Polarity,
		Reason:        reason,
		UserID:        userID,
		SessionID:     sessionID,
		TenantID:      tenantID,
		ClientTraceID: req.TraceID,
		LatencyMs:     latencyMs,
	})
}

// resolveMember maps the request's member description to a live handle
// on the context type. The returned value is a member.Method,
// member.Constructor or member.Field.
func resolveMember(graph *typegraph.Graph, contextType member.Type, req MemberReq) (any, error) {
	switch req.Kind {
	case "field":
		f, ok := contextType.Field(req.Name)
		if !ok {
			return nil, fmt.Errorf("unknown field %s.%s", contextType.Name(), req.Name)
		}
		return f, nil

	case "constructor":
		params, err := resolveParamTypes(graph, req.ParamTypes)
		if err != nil {
			return nil, err
		}
		c, ok := contextType.Constructor(params)
		if !ok {
			return nil, fmt.Errorf("unknown constructor %s%s", contextType.Name(),
				member.ConstructorSignature{Params: params}.Key())
		}
		return c, nil

	case "method":
		params, err := resolveParamTypes(graph, req.ParamTypes)
		if err != nil {
			return nil, err
		}
		m, ok := contextType.Method(req.Name, params)
		if !ok {
			return nil, fmt.Errorf("unknown method %s.%s", contextType.Name(),
				member.MethodSignature{Name: req.Name, Params: params}.Key())
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown member kind %q", req.Kind)
}

// resolveParamTypes maps declared parameter type names (with optional
// "[]" suffixes) to handles within the graph.
func resolveParamTypes(graph *typegraph.Graph, names []string) ([]member.Type, error) {
	params := make([]member.Type, 0, len(names))
	for _, name := range names {
		elemName := name
		rank := 0
		for strings.HasSuffix(elemName, "[]") {
			rank++
			elemName = elemName[:len(elemName)-2]
		}
		p, ok := graph.ResolveType(elemName)
		if !ok {
			return nil, fmt.Errorf("unknown parameter type %q", name)
		}
		for range rank {
			p = graph.ArrayOf(p)
		}
		params = append(params, p)
	}
	return params, nil
}
