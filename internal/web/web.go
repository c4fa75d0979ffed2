// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package web is a collection of functions and types for building web services.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.gridlink.dev/tools/internal/cli"
)

// StatusErr is an error that carries an HTTP status code.
type StatusErr int

// Error returns the lowercase status text of the code.
func (se StatusErr) Error() string { return strings.ToLower(http.StatusText(int(se))) }

const (
	// ErrBadRequest represents a bad request error (HTTP 400).
	ErrBadRequest StatusErr = http.StatusBadRequest
	// ErrUnauthorized represents an unauthorized access error (HTTP 401).
	ErrUnauthorized StatusErr = http.StatusUnauthorized
	// ErrNotFound represents a not found error (HTTP 404).
	ErrNotFound StatusErr = http.StatusNotFound
	// ErrMethodNotAllowed represents a method not allowed error (HTTP 405).
	ErrMethodNotAllowed StatusErr = http.StatusMethodNotAllowed
	// ErrInternalServerError represents an internal server error (HTTP 500).
	ErrInternalServerError StatusErr = http.StatusInternalServerError
)

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// RespondJSON writes response to w as indented JSON.
func RespondJSON(w http.ResponseWriter, response any) {
	respondJSON(w, http.StatusOK, response)
}

func respondJSON(w http.ResponseWriter, code int, response any) {
	b, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		code = http.StatusInternalServerError
		b, _ = json.Marshal(&errorResponse{Status: "error", Error: "JSON marshal error: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
	w.Write([]byte("\n"))
}

// RespondJSONError writes err to w as a JSON error response.
//
// If err is or wraps a [StatusErr], its code is used as the response status.
// Otherwise the status is 500 and err is logged to the environment of the
// request context (see [cli.GetEnv]).
//
//	// This will set the status code to 404 (Not Found).
//	web.RespondJSONError(w, r, fmt.Errorf("session %w", web.ErrNotFound))
func RespondJSONError(w http.ResponseWriter, r *http.Request, err error) {
	var se StatusErr
	if !errors.As(err, &se) {
		se = ErrInternalServerError
	}
	if se == ErrInternalServerError {
		cli.GetEnv(r.Context()).Logf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	respondJSON(w, int(se), &errorResponse{Status: "error", Error: err.Error()})
}
