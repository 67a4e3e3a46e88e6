package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matzeds/cookbook/auth"
	"github.com/matzeds/cookbook/handlers"
)

func preflight(t *testing.T, router http.Handler, origin string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodOptions, "/api/healthz", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCORSDevOriginsToggle(t *testing.T) {
	t.Setenv("COOKBOOK_UI_ORIGIN", "https://cookbook.example")

	t.Setenv("COOKBOOK_DEV_CORS", "true")
	router := makeRouter(handlers.New(nil, auth.NewTokens("test-secret"), t.TempDir()))
	rec := preflight(t, router, "http://localhost:5173")
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	t.Setenv("COOKBOOK_DEV_CORS", "false")
	router = makeRouter(handlers.New(nil, auth.NewTokens("test-secret"), t.TempDir()))
	rec = preflight(t, router, "http://localhost:5173")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// The configured UI origin stays allowed either way.
	rec = preflight(t, router, "https://cookbook.example")
	assert.Equal(t, "https://cookbook.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
