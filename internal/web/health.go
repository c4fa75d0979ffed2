// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"fmt"
	"net/http"
	"net/url"

	"go.gridlink.dev/tools/internal/util/syncx"
)

// Health returns the [HealthHandler] registered on mux at /health, creating it
// if necessary.
func Health(mux *http.ServeMux) *HealthHandler {
	h, pat := mux.Handler(&http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/health"}})
	if hh, ok := h.(*HealthHandler); ok && pat == "/health" {
		return hh
	}
	ret := &HealthHandler{checks: syncx.Protect(make(checksMap))}
	mux.Handle("/health", ret)
	return ret
}

// HealthHandler reports the health of registered subsystems.
type HealthHandler struct{ checks *syncx.Protected[checksMap] }

type checksMap = map[string]HealthFunc

// HealthFunc reports the state of a subsystem. It must be safe for
// concurrent use.
type HealthFunc func() (status string, ok bool)

// RegisterFunc registers a check under name. It panics if name is taken.
func (h *HealthHandler) RegisterFunc(name string, f HealthFunc) {
	h.checks.Access(func(checks checksMap) {
		if _, dup := checks[name]; dup {
			panic(fmt.Sprintf("web: health check %q already registered", name))
		}
		checks[name] = f
	})
}

// HealthResponse is the body of a /health response.
type HealthResponse struct {
	OK     bool                     `json:"ok"`
	Checks map[string]CheckResponse `json:"checks"`
}

// CheckResponse is the result of a single check.
type CheckResponse struct {
	Status string `json:"status"`
	OK     bool   `json:"ok"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hr := &HealthResponse{OK: true, Checks: make(map[string]CheckResponse)}
	h.checks.RAccess(func(checks checksMap) {
		for name, f := range checks {
			status, ok := f()
			hr.OK = hr.OK && ok
			hr.Checks[name] = CheckResponse{Status: status, OK: ok}
		}
	})

	code := http.StatusOK
	if !hr.OK {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, hr)
}
