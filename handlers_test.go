// Filedrop, October 2026
// License AGPL3

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/knadh/filedrop/internal/hub"
	"github.com/knadh/filedrop/store/mem"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestApp(t *testing.T, cfg *hub.Config) *App {
	s, err := mem.New(mem.Config{})
	if err != nil {
		t.Fatalf("error creating store: %v", err)
	}
	l := zap.NewNop().Sugar()
	return &App{
		cfg:    cfg,
		store:  s,
		hub:    hub.NewHub(cfg, s, l),
		logger: l,
	}
}

func get(t *testing.T, h http.Handler, r *http.Request) (*httptest.ResponseRecorder, jsonResp) {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var out jsonResp
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return w, out
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, &hub.Config{WSTimeout: time.Second * 5})
	w, out := get(t, initRoutes(app), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK || out.Error != nil || out.Data != true {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
}

func TestStatsAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	app := newTestApp(t, &hub.Config{WSTimeout: time.Second * 5, AdminPasswordHash: string(hash)})
	r := initRoutes(app)

	w, _ := get(t, r, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.SetBasicAuth("admin", "wrong")
	if w, _ := get(t, r, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong password, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.SetBasicAuth("admin", "secret")
	w, out := get(t, r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, ok := out.Data.(map[string]interface{})["rooms"]; !ok {
		t.Fatalf("stats missing rooms: %s", w.Body.String())
	}
}

func TestSeen(t *testing.T) {
	app := newTestApp(t, &hub.Config{WSTimeout: time.Second * 5, LastSeenTTL: time.Hour})
	r := initRoutes(app)

	w, _ := get(t, r, httptest.NewRequest(http.MethodGet, "/api/users/a/seen", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unseen user, got %d", w.Code)
	}

	app.hub.MarkSeen("a")
	w, out := get(t, r, httptest.NewRequest(http.MethodGet, "/api/users/a/seen", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	seen := out.Data.(map[string]interface{})["seen_at"].(string)
	if _, err := time.Parse(time.RFC3339, seen); err != nil {
		t.Fatalf("invalid seen_at %q: %v", seen, err)
	}
}

func TestCORS(t *testing.T) {
	app := newTestApp(t, &hub.Config{
		WSTimeout:      time.Second * 5,
		AllowedOrigins: []string{"https://drop.example.com/"},
	})
	r := initRoutes(app)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://drop.example.com")
	w, _ := get(t, r, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "https://drop.example.com" {
		t.Fatal("allowed origin not echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w, _ = get(t, r, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("disallowed origin echoed")
	}
}

func TestWSUnknownCodec(t *testing.T) {
	app := newTestApp(t, &hub.Config{WSTimeout: time.Second * 5})
	w, out := get(t, initRoutes(app), httptest.NewRequest(http.MethodGet, "/ws?codec=xml", nil))
	if w.Code != http.StatusBadRequest || out.Error == nil {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOnionKey(t *testing.T) {
	s, _ := mem.New(mem.Config{})

	pk, err := getOrCreatePK(s)
	if err != nil {
		t.Fatalf("error creating key: %v", err)
	}
	pk2, err := getOrCreatePK(s)
	if err != nil {
		t.Fatalf("error loading key: %v", err)
	}
	if !pk.Equal(pk2) {
		t.Fatal("stored key not reused")
	}
	if len(onionAddr(pk)) != 56 {
		t.Fatalf("unexpected onion address: %s", onionAddr(pk))
	}
}
