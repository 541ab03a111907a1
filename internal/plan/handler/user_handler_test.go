package handler

import (
	"net/http"
	"testing"

	"github.com/ovenbird/bakeplan/internal/plan/testutil"
)

func TestCurrentUserProfile(t *testing.T) {
	env := setupPlanTest(t)
	token := testutil.DefaultTestToken()
	testutil.SeedTestUser(t, env.DB, "test-user-001", "Test Baker", "baker@test.com")

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/me", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["name"] != "Test Baker" {
		t.Errorf("Expected name 'Test Baker', got %v", data["name"])
	}
}

func TestCurrentUserProfileUnknownUser(t *testing.T) {
	env := setupPlanTest(t)
	token := testutil.DefaultTestToken()

	// Token subject has no row in the users table
	w := testutil.DoRequest(env.Router, "GET", "/api/v1/me", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
