// Filedrop, October 2026
// License AGPL3

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/knadh/filedrop/internal/hub"
	"github.com/knadh/filedrop/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	hasAdmin = 1 << iota
)

// reqCtx is the context injected into every request.
type reqCtx struct {
	app *App
}

// jsonResp is the envelope for all JSON API responses.
type jsonResp struct {
	Error *string     `json:"error"`
	Data  interface{} `json:"data"`
}

// tpl is the envelope for all HTML template executions.
type tpl struct {
	Config *hub.Config
	Data   tplData
}

type tplData struct {
	Title  string
	WSPath string
}

type seenResp struct {
	UID    string `json:"uid"`
	SeenAt string `json:"seen_at"`
}

// handleIndex renders the homepage.
func handleIndex(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context().Value("ctx").(*reqCtx)
		app = ctx.app
	)
	respondHTML("index", tplData{
		Title:  app.cfg.Name,
		WSPath: "/ws",
	}, http.StatusOK, w, app)
}

// handleWS upgrades a request to a websocket and hands it to the hub as a
// new endpoint.
func handleWS(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context().Value("ctx").(*reqCtx)
		app = ctx.app
	)

	codec, err := hub.CodecByName(r.URL.Query().Get("codec"))
	if err != nil {
		respondJSON(w, nil, err, http.StatusBadRequest)
		return
	}

	ws, err := app.upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.logger.Errorf("websocket upgrade failed: %s: %v", r.RemoteAddr, err)
		return
	}

	c := app.hub.AddConn(ws, codec)
	app.logger.Debugf("endpoint %s connected from %s (%s)", c.ID(), r.RemoteAddr, codec.Name())
}

// handleHealth is a liveness check.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, true, nil, http.StatusOK)
}

// handleStats returns the size of the hub's registries.
func handleStats(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context().Value("ctx").(*reqCtx)
		app = ctx.app
	)
	respondJSON(w, app.hub.Stats(), nil, http.StatusOK)
}

// handleSeen returns the last time a user was connected.
func handleSeen(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context().Value("ctx").(*reqCtx)
		app = ctx.app
		uid = chi.URLParam(r, "uid")
	)

	if _, ok := app.hub.Lookup(uid); ok {
		respondJSON(w, seenResp{UID: uid, SeenAt: "now"}, nil, http.StatusOK)
		return
	}

	b, err := app.store.Get(hub.SeenKey(uid))
	if err != nil {
		if err == store.ErrNotFound {
			respondJSON(w, nil, errors.New("user has not been seen"), http.StatusNotFound)
			return
		}
		app.logger.Errorf("error reading last seen for %s: %v", uid, err)
		respondJSON(w, nil, errors.New("error reading last seen"), http.StatusInternalServerError)
		return
	}
	respondJSON(w, seenResp{UID: uid, SeenAt: string(b)}, nil, http.StatusOK)
}

// respondJSON responds to an HTTP request with a generic payload or an error.
func respondJSON(w http.ResponseWriter, data interface{}, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	out := jsonResp{Data: data}
	if err != nil {
		e := err.Error()
		out.Error = &e
	}
	b, err := json.Marshal(out)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write(b)
}

// respondHTML responds to an HTTP request with the HTML output of a given template.
func respondHTML(tplName string, data tplData, statusCode int, w http.ResponseWriter, app *App) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if statusCode > 0 {
		w.WriteHeader(statusCode)
	}

	err := app.tpl.ExecuteTemplate(w, tplName, tpl{
		Config: app.cfg,
		Data:   data,
	})
	if err != nil {
		app.logger.Errorf("error rendering template %s: %s", tplName, err)
		w.Write([]byte("error rendering template"))
	}
}

// wrap is a middleware that handles CORS and admin auth for various HTTP
// handlers. It attaches the app context to handlers.
func wrap(next http.HandlerFunc, app *App, opts uint8) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &reqCtx{app: app}

		if o := r.Header.Get("Origin"); o != "" && originAllowed(app.cfg.AllowedOrigins, o) {
			w.Header().Set("Access-Control-Allow-Origin", o)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}

		// Check if the request is authenticated as the admin.
		if opts&hasAdmin != 0 && app.cfg.AdminPasswordHash != "" {
			_, pwd, ok := r.BasicAuth()
			if !ok || bcrypt.CompareHashAndPassword([]byte(app.cfg.AdminPasswordHash), []byte(pwd)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="filedrop"`)
				respondJSON(w, nil, errors.New("invalid credentials"), http.StatusUnauthorized)
				return
			}
		}

		// Attach the request context.
		ctx := context.WithValue(r.Context(), "ctx", req)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// originAllowed checks an Origin header against the allowed origins. An
// empty list or "*" allows all origins.
func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 || origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), origin) {
			return true
		}
	}
	return false
}
