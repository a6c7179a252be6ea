package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/memberguard/memberguard/internal/storage"
	"go.uber.org/zap"
)

const checkGraphDoc = `{
	"types": [
		{
			"name": "com.example.Base",
			"methods": [
				{"name": "open", "params": []},
				{"name": "close", "params": []}
			],
			"constructors": [{"params": []}],
			"fields": [{"name": "state"}]
		},
		{
			"name": "com.example.Derived",
			"extends": ["com.example.Base"],
			"constructors": [{"params": []}]
		}
	]
}`

const checkSelectors = "com.example.Base.open()\ncom.example.Base.Base()\ncom.example.Base.state"

func testDeps(t *testing.T) *Dependencies {
	t.Helper()
	return &Dependencies{
		Writer: storage.NewLogWriter(zap.NewNop()),
		Logger: zap.NewNop(),
	}
}

func testProject(t *testing.T, d *Dependencies, mode string) *authProject {
	t.Helper()
	pol, graph, err := d.compileRuleset("allow", "", checkSelectors, json.RawMessage(checkGraphDoc))
	if err != nil {
		t.Fatalf("compileRuleset: %v", err)
	}
	return &authProject{
		ID:       "proj-1",
		Mode:     mode,
		Policy:   pol,
		Graph:    graph,
		Polarity: "allow",
	}
}

func doCheck(t *testing.T, d *Dependencies, proj *authProject, body CheckRequest) (*httptest.ResponseRecorder, CheckResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/access", bytes.NewReader(raw))
	req = req.WithContext(context.WithValue(req.Context(), projectCtxKey, proj))
	w := httptest.NewRecorder()
	d.handleCheck(w, req)

	var resp CheckResponse
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return w, resp
}

func TestCheckExposedMethod(t *testing.T) {
	d := testDeps(t)
	proj := testProject(t, d, "enforce")

	w, resp := doCheck(t, d, proj, CheckRequest{
		ContextType: "com.example.Base",
		Member:      MemberReq{Kind: "method", Name: "open"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if !resp.Exposed || resp.Verdict != "allow" {
		t.Errorf("got exposed=%v verdict=%s", resp.Exposed, resp.Verdict)
	}
	if resp.IsShadow {
		t.Error("enforce mode must not report shadow")
	}
	if resp.RequestID == "" {
		t.Error("request_id missing")
	}
}

func TestCheckDeniedMethod(t *testing.T) {
	d := testDeps(t)
	proj := testProject(t, d, "enforce")

	w, resp := doCheck(t, d, proj, CheckRequest{
		ContextType: "com.example.Base",
		Member:      MemberReq{Kind: "method", Name: "close"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if resp.Exposed || resp.Verdict != "deny" {
		t.Errorf("got exposed=%v verdict=%s", resp.Exposed, resp.Verdict)
	}
	if resp.Reason == nil || *resp.Reason != "not matched by allow list" {
		t.Errorf("got reason %v", resp.Reason)
	}
}

func TestCheckSubtypeWidening(t *testing.T) {
	d := testDeps(t)
	proj := testProject(t, d, "enforce")

	// open is selected at Base, accessed through Derived.
	_, resp := doCheck(t, d, proj, CheckRequest{
		ContextType: "com.example.Derived",
		Member:      MemberReq{Kind: "method", Name: "open"},
	})
	if !resp.Exposed {
		t.Error("method selector should widen to the subtype")
	}

	// The Base() selector must not cover Derived().
	_, resp = doCheck(t, d, proj, CheckRequest{
		ContextType: "com.example.Derived",
		Member:      MemberReq{Kind: "constructor"},
	})
	if resp.Exposed {
		t.Error("constructor selector must not widen to the subtype")
	}
}

func TestCheckConstructorAndField(t *testing.T) {
	d := testDeps(t)
	proj := testProject(t, d, "enforce")

	_, resp := doCheck(t, d, proj, CheckRequest{
		ContextType: "com.example.Base",
		Member:      MemberReq{Kind: "constructor"},
	})
	if !resp.Exposed {
		t.Error("listed constructor should be exposed")
	}

	_, resp = doCheck(t, d, proj, CheckRequest{
		ContextType: "com.example.Base",
		Member:      MemberReq{Kind: "field", Name: "state"},
	})
	if !resp.Exposed {
		t.Error("listed field should be exposed")
	}
}

func TestCheckShadowMode(t *testing.T) {
	d := testDeps(t)
	proj := testProject(t, d, "shadow")

	_, resp := doCheck(t, d, proj, CheckRequest{
		ContextType: "com.example.Base",
		Member:      MemberReq{Kind: "method", Name: "close"},
	})
	if !resp.Exposed || resp.Verdict != "allow" {
		t.Errorf("shadow mode must return allow, got exposed=%v verdict=%s", resp.Exposed, resp.Verdict)
	}
	if !resp.IsShadow {
		t.Error("is_shadow should be set when the real verdict was deny")
	}
}

func TestCheckBadRequests(t *testing.T) {
	d := testDeps(t)
	proj := testProject(t, d, "enforce")

	cases := []struct {
		name string
		req  CheckRequest
	}{
		{"missing context type", CheckRequest{Member: MemberReq{Kind: "method", Name: "open"}}},
		{"bad kind", CheckRequest{ContextType: "com.example.Base", Member: MemberReq{Kind: "property", Name: "x"}}},
		{"method without name", CheckRequest{ContextType: "com.example.Base", Member: MemberReq{Kind: "method"}}},
		{"unknown context type", CheckRequest{ContextType: "com.example.Nope", Member: MemberReq{Kind: "method", Name: "open"}}},
		{"unknown member", CheckRequest{ContextType: "com.example.Base", Member: MemberReq{Kind: "method", Name: "nope"}}},
		{"unknown param type", CheckRequest{ContextType: "com.example.Base", Member: MemberReq{Kind: "method", Name: "open", ParamTypes: []string{"com.example.Nope"}}}},
	}
	for _, c := range cases {
		w, _ := doCheck(t, d, proj, c.req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: got status %d, want 400", c.name, w.Code)
		}
	}
}

func TestCheckBrokenRulesetFailsClosed(t *testing.T) {
	d := testDeps(t)
	proj := &authProject{
		ID:         "proj-1",
		Mode:       "enforce",
		Polarity:   "allow",
		RulesetErr: "malformed member selector",
	}

	w, resp := doCheck(t, d, proj, CheckRequest{
		ContextType: "com.example.Base",
		Member:      MemberReq{Kind: "method", Name: "open"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if resp.Exposed || resp.Verdict != "deny" {
		t.Errorf("broken ruleset must deny, got exposed=%v verdict=%s", resp.Exposed, resp.Verdict)
	}
	if resp.Reason == nil {
		t.Fatal("reason missing")
	}
}

func TestCompileRulesetErrors(t *testing.T) {
	d := testDeps(t)
	cases := []struct {
		name      string
		polarity  string
		selectors string
		graph     string
	}{
		{"bad polarity", "block", "", checkGraphDoc},
		{"malformed selector", "allow", "com.example.Base.open(int...)", checkGraphDoc},
		{"broken graph", "allow", "", `{"types":[{"name":"a.A","extends":["a.B"]}]}`},
	}
	for _, c := range cases {
		if _, _, err := d.compileRuleset(c.polarity, "", c.selectors, json.RawMessage(c.graph)); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestCompileRulesetAcceptsUnresolved(t *testing.T) {
	d := testDeps(t)
	pol, graph, err := d.compileRuleset("allow", "", "com.example.Missing.open()", json.RawMessage(checkGraphDoc))
	if err != nil {
		t.Fatalf("unresolved selectors must compile: %v", err)
	}
	if pol == nil || graph == nil {
		t.Fatal("expected a policy and graph")
	}
}
