package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthCacheFreshHit(t *testing.T) {
	c := newAuthCache(time.Minute)
	proj := &authProject{ID: "p1"}
	c.set("mbg_key", proj)

	got, hit, needsRefresh := c.get("mbg_key")
	if !hit || needsRefresh {
		t.Fatalf("got hit=%v needsRefresh=%v", hit, needsRefresh)
	}
	if got != proj {
		t.Error("wrong project returned")
	}
}

func TestAuthCacheMiss(t *testing.T) {
	c := newAuthCache(time.Minute)
	if _, hit, _ := c.get("nope"); hit {
		t.Error("expected a miss")
	}
}

func TestAuthCacheStaleSingleRefresher(t *testing.T) {
	c := newAuthCache(-time.Second) // entries are stale immediately
	proj := &authProject{ID: "p1"}
	c.set("mbg_key", proj)

	got, hit, needsRefresh := c.get("mbg_key")
	if !hit || !needsRefresh {
		t.Fatalf("first stale read should win the refresh: hit=%v needsRefresh=%v", hit, needsRefresh)
	}
	if got != proj {
		t.Error("stale read must still return the cached project")
	}

	// Second reader sees the stale value but must not refresh too.
	_, hit, needsRefresh = c.get("mbg_key")
	if !hit || needsRefresh {
		t.Errorf("second stale read: hit=%v needsRefresh=%v", hit, needsRefresh)
	}

	// A fresh set resets the refresh flag: it becomes claimable exactly
	// once again.
	c.set("mbg_key", proj)
	if _, _, needsRefresh := c.get("mbg_key"); !needsRefresh {
		t.Error("refresh flag should be claimable after a reset")
	}
	if _, _, needsRefresh := c.get("mbg_key"); needsRefresh {
		t.Error("refresh flag claimed twice after reset")
	}
}

func TestAuthCacheReleaseAfterFailedRefresh(t *testing.T) {
	c := newAuthCache(-time.Second)
	c.set("mbg_key", &authProject{ID: "p1"})

	if _, _, needsRefresh := c.get("mbg_key"); !needsRefresh {
		t.Fatal("stale read should claim the refresh")
	}
	// While the claim is held nobody else may refresh.
	if _, _, needsRefresh := c.get("mbg_key"); needsRefresh {
		t.Fatal("claim held, second reader must not refresh")
	}

	// The refresh failed; the claim goes back so a later read retries.
	c.release("mbg_key")
	if _, _, needsRefresh := c.get("mbg_key"); !needsRefresh {
		t.Error("refresh should be claimable again after a failed attempt")
	}

	// Releasing an evicted key is a no-op.
	c.release("mbg_gone")
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer mbg_abc123", "mbg_abc123", true},
		{"Bearer   mbg_abc123  ", "mbg_abc123", true},
		{"mbg_abc123", "", false},
		{"Basic dXNlcg==", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.header != "" {
			r.Header.Set("Authorization", c.header)
		}
		got, ok := extractBearerToken(r)
		if ok != c.ok || got != c.want {
			t.Errorf("header %q: got (%q, %v), want (%q, %v)", c.header, got, ok, c.want, c.ok)
		}
	}
}
