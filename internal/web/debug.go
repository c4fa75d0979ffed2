// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Adapted from https://pkg.go.dev/tailscale.com/tsweb#Debugger.

package web

import (
	"cmp"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"slices"
	"sync"
	"time"

	"go.gridlink.dev/tools/internal/version"
)

// DebugHandler serves a JSON index of debug endpoints at /debug/ and helps
// register more of them. Its methods are safe for concurrent use.
type DebugHandler struct {
	mux *http.ServeMux

	mu      sync.RWMutex
	kvfuncs []kvfunc
	links   []Link
}

type kvfunc struct {
	k string
	v func() any
}

// Link is an entry of the debug index.
type Link struct {
	URL  string `json:"url"`
	Desc string `json:"desc"`
}

// DebugIndex is the body of a /debug/ response.
type DebugIndex struct {
	Command string         `json:"command"`
	Version version.Info   `json:"version"`
	Values  map[string]any `json:"values"`
	Links   []Link         `json:"links"`
}

// Debugger returns the [DebugHandler] registered on mux at /debug/, creating it
// if necessary.
func Debugger(mux *http.ServeMux) *DebugHandler {
	h, pat := mux.Handler(&http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/debug/"}})
	if d, ok := h.(*DebugHandler); ok && pat == "/debug/" {
		return d
	}
	ret := &DebugHandler{mux: mux}
	mux.Handle("/debug/", ret)

	if hostname, err := os.Hostname(); err == nil {
		ret.KV("machine", hostname)
	}
	ret.KVFunc("uptime", func() any { return time.Since(timeStart).Round(time.Second).String() })
	ret.Handle("pprof/", "pprof", http.HandlerFunc(pprof.Index))
	mux.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
	return ret
}

var timeStart = time.Now()

func (d *DebugHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/debug/" {
		RespondJSONError(w, r, ErrNotFound)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	idx := DebugIndex{
		Command: version.CmdName(),
		Version: version.Version(),
		Values:  make(map[string]any, len(d.kvfuncs)),
		Links:   slices.Clone(d.links),
	}
	for _, kv := range d.kvfuncs {
		idx.Values[kv.k] = kv.v()
	}
	RespondJSON(w, idx)
}

// Handle registers handler at /debug/<slug> and lists it in the index.
func (d *DebugHandler) Handle(slug, desc string, handler http.Handler) {
	href := "/debug/" + slug
	d.mux.Handle(href, handler)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.links = append(d.links, Link{URL: href, Desc: desc})
	slices.SortStableFunc(d.links, func(a, b Link) int { return cmp.Compare(a.Desc, b.Desc) })
}

// KV adds a fixed value to the index.
func (d *DebugHandler) KV(k string, v any) {
	d.KVFunc(k, func() any { return v })
}

// KVFunc adds a value to the index. v is called on every request.
func (d *DebugHandler) KVFunc(k string, v func() any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kvfuncs = append(d.kvfuncs, kvfunc{k, v})
}
