// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package shortlink resolves shortened map links, such as maps.app.goo.gl,
// to the URLs they redirect to.
package shortlink

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"go.gridlink.dev/tools/internal/request"
	"go.gridlink.dev/tools/internal/version"
)

// DefaultDomains is the shortener allow-list used when [Resolver.Domains] is
// empty.
var DefaultDomains = []string{"maps.app.goo.gl"}

// DefaultTimeout bounds a single resolution, including redirects and waiting
// for the rate limiter.
const DefaultTimeout = 10 * time.Second

// ErrResolve is wrapped by every error returned from [Resolver.Resolve].
var ErrResolve = errors.New("could not resolve short link")

// ResolveError describes a failed resolution.
type ResolveError struct {
	URL string
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolving %q: %v", e.URL, e.Err)
}

// Unwrap makes both [ErrResolve] and the underlying cause visible to
// errors.Is and errors.As.
func (e *ResolveError) Unwrap() []error { return []error{ErrResolve, e.Err} }

// Resolver follows redirects of short links. The zero value is ready to use.
type Resolver struct {
	// Domains is the shortener allow-list. Empty means DefaultDomains.
	Domains []string
	// HTTPClient is used for requests. If nil, request.DefaultClient is used.
	HTTPClient *http.Client
	// Timeout bounds each resolution. Zero means DefaultTimeout.
	Timeout time.Duration
	// Limiter, if not nil, limits the rate of outbound requests.
	Limiter *rate.Limiter
	// Logger, if not nil, receives debug logs.
	Logger *slog.Logger

	group singleflight.Group
}

func (r *Resolver) domains() []string {
	if len(r.Domains) == 0 {
		return DefaultDomains
	}
	return r.Domains
}

// Matches reports whether text mentions one of the shortener domains.
func (r *Resolver) Matches(text string) bool {
	text = strings.ToLower(text)
	for _, d := range r.domains() {
		if strings.Contains(text, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

var urlRe = regexp.MustCompile(`(?i)https?://\S+`)

// Sentence punctuation that ends a link written in prose.
const trailingPunct = ").,;!?"

// Find returns the first short link in text, or an empty string. A link
// written without a scheme is returned with "https://" prepended. Trailing
// punctuation, as in "(see https://maps.app.goo.gl/x).", is dropped.
func (r *Resolver) Find(text string) string {
	for _, u := range urlRe.FindAllString(text, -1) {
		if u = strings.TrimRight(u, trailingPunct); r.Matches(u) {
			return u
		}
	}
	for _, f := range strings.Fields(text) {
		f = strings.TrimRight(strings.TrimLeft(f, "("), trailingPunct)
		if r.Matches(f) && !strings.Contains(f, "://") {
			return "https://" + f
		}
	}
	return ""
}

// Resolve sends a HEAD request to url, follows redirects and returns the
// final URL. The status code of the final response is not checked.
//
// Concurrent calls for the same URL share a single request.
func (r *Resolver) Resolve(ctx context.Context, url string) (string, error) {
	ch := r.group.DoChan(url, func() (any, error) {
		// The shared request outlives any single caller.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cmp.Or(r.Timeout, DefaultTimeout))
		defer cancel()
		return r.resolve(ctx, url)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", &ResolveError{URL: url, Err: res.Err}
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &ResolveError{URL: url, Err: ctx.Err()}
	}
}

func (r *Resolver) resolve(ctx context.Context, url string) (string, error) {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	httpc := request.DefaultClient
	if r.HTTPClient != nil {
		httpc = r.HTTPClient
	}

	start := time.Now()
	res, err := httpc.Do(req)
	if err != nil {
		return "", err
	}
	res.Body.Close()

	final := res.Request.URL.String()
	if r.Logger != nil {
		r.Logger.Debug("resolved short link",
			"url", url,
			"final", final,
			"status", res.StatusCode,
			"duration", time.Since(start),
		)
	}
	return final, nil
}
