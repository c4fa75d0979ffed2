// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package request_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.gridlink.dev/tools/internal/request"
	"go.gridlink.dev/tools/internal/testutil"
)

func TestMake(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check the request method and path.
		if r.Method != http.MethodPost || r.URL.Path != "/test" {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "missing user agent", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "success"}`))
	}))
	defer ts.Close()

	cases := map[string]struct {
		params  request.Params
		want    string
		wantErr bool
	}{
		"successful request": {
			params: request.Params{
				Method: http.MethodPost,
				URL:    ts.URL + "/test",
				Body:   map[string]string{"key": "value"},
			},
			want: `{"message": "success"}`,
		},
		"successful request with headers": {
			params: request.Params{
				Method: http.MethodPost,
				URL:    ts.URL + "/test",
				Headers: map[string]string{
					"X-Test": "test",
				},
				Body: map[string]string{"key": "value"},
			},
			want: `{"message": "success"}`,
		},
		"custom HTTP client": {
			params: request.Params{
				Method:     http.MethodPost,
				URL:        ts.URL + "/test",
				HTTPClient: &http.Client{},
				Body:       map[string]string{"key": "value"},
			},
			want: `{"message": "success"}`,
		},
		"invalid request method": {
			params: request.Params{
				Method: http.MethodGet,
				URL:    ts.URL + "/test",
			},
			wantErr: true,
		},
		"invalid value for JSON": {
			params: request.Params{
				Method: http.MethodPost,
				URL:    ts.URL + "/test",
				Body:   make(chan int),
			},
			wantErr: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := request.Make[json.RawMessage](t.Context(), tc.params)
			if err != nil {
				if !tc.wantErr {
					t.Errorf("Make() error = %v, wantErr %v", err, tc.wantErr)
				}
				return
			}
			if tc.wantErr {
				t.Errorf("Make() expected error, got none")
			} else if string(resp) != tc.want {
				t.Errorf("Make() got = %v, want %v", string(resp), tc.want)
			}
		})
	}
}

func TestMakeStatusError(t *testing.T) {
	const token = "123456:secret"

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusTooManyRequests)
	})

	_, err := request.Make[request.IgnoreResponse](t.Context(), request.Params{
		Method:     http.MethodPost,
		URL:        "https://example.com/bot" + token + "/sendMessage",
		HTTPClient: testutil.MockHTTPClient(mux),
		Scrubber:   strings.NewReplacer(token, "[EXPUNGED]"),
	})
	if err == nil {
		t.Fatal("want error, got nil")
	}

	var se *request.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("want *request.StatusError, got %T", err)
	}
	testutil.AssertEqual(t, se.StatusCode, http.StatusTooManyRequests)
	if strings.Contains(err.Error(), token) {
		t.Fatalf("error message leaks the token: %v", err)
	}
}

func TestMakeIgnoreResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := request.Make[request.IgnoreResponse](t.Context(), request.Params{
		Method:     http.MethodGet,
		URL:        "https://example.com/",
		HTTPClient: testutil.MockHTTPClient(mux),
	})
	if err != nil {
		t.Fatal(err)
	}
}
