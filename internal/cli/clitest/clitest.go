// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package clitest provides utilities for testing command-line applications.
package clitest

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.gridlink.dev/tools/internal/cli"
)

// DirVar is replaced in [Case.Args] and [Case.Env] values with the directory
// holding [Case.Files].
const DirVar = "$DIR"

// Case represents a single test case for a command-line application.
type Case[App cli.App] struct {
	// Args are the command-line arguments to pass to the application.
	Args []string
	// Stdin is the optional standard input to pass to the application.
	Stdin io.Reader
	// Env are the environment variables visible to the application.
	Env map[string]string
	// Files are written, relative to a fresh temporary directory, before the
	// application runs. Refer to that directory as $DIR in Args and Env.
	Files map[string]string
	// WantErr is the expected error to be returned by the application, checked
	// with errors.Is.
	WantErr error
	// WantErrType is the expected type of the error to be returned by the
	// application, checked with errors.As.
	WantErrType error
	// WantInErr is the expected substring of the returned error's message.
	WantInErr string
	// WantNothingPrinted indicates that no output should be printed to stdout or
	// stderr.
	WantNothingPrinted bool
	// WantInStdout is the expected substring to be present in the stdout output.
	WantInStdout string
	// WantInStderr is the expected substring to be present in the stderr output.
	WantInStderr string
	// CheckFunc is an optional function to perform additional checks after the
	// application has run.
	CheckFunc func(*testing.T, App)
}

// Run runs the provided test cases against the given command-line application.
// setup is called once per case to build a fresh application.
func Run[App cli.App](t *testing.T, setup func(*testing.T) App, cases map[string]Case[App]) {
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			app := setup(t)
			res := tc.run(t, app)
			tc.check(t, res)
			if tc.CheckFunc != nil {
				tc.CheckFunc(t, app)
			}
		})
	}
}

type result struct {
	err            error
	stdout, stderr string
}

func (tc *Case[App]) run(t *testing.T, app App) result {
	t.Helper()

	expand := func(s string) string { return s }
	if len(tc.Files) > 0 {
		dir := t.TempDir()
		for name, content := range tc.Files {
			path := filepath.Join(dir, filepath.FromSlash(name))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		expand = func(s string) string { return strings.ReplaceAll(s, DirVar, dir) }
	}

	args := make([]string, len(tc.Args))
	for i, arg := range tc.Args {
		args[i] = expand(arg)
	}
	vars := make(map[string]string, len(tc.Env))
	for k, v := range tc.Env {
		vars[k] = expand(v)
	}

	stdin := tc.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	var stdout, stderr bytes.Buffer
	env := &cli.Env{
		Args:   args,
		Getenv: func(name string) string { return vars[name] },
		Stdin:  stdin,
		Stdout: &stdout,
		Stderr: &stderr,
	}

	err := cli.Run(cli.WithEnv(t.Context(), env), app)
	return result{err: err, stdout: stdout.String(), stderr: stderr.String()}
}

func (tc *Case[App]) check(t *testing.T, res result) {
	t.Helper()

	wantsErr := tc.WantErr != nil || tc.WantErrType != nil || tc.WantInErr != ""
	if res.err == nil && wantsErr {
		t.Fatalf("must fail, but succeeded")
	}
	if res.err != nil && !wantsErr {
		t.Fatalf("unexpected error: %v", res.err)
	}

	if res.err != nil && tc.WantErrType != nil {
		got := reflect.New(reflect.TypeOf(tc.WantErrType))
		if !errors.As(res.err, got.Interface()) {
			t.Fatalf("want error type %T, got %T", tc.WantErrType, res.err)
		}
	}
	if res.err != nil && tc.WantErr != nil && !errors.Is(res.err, tc.WantErr) {
		t.Fatalf("want error %v, got: %v", tc.WantErr, res.err)
	}
	if res.err != nil && tc.WantInErr != "" && !strings.Contains(res.err.Error(), tc.WantInErr) {
		t.Fatalf("error must contain %q, got: %v", tc.WantInErr, res.err)
	}

	if tc.WantNothingPrinted {
		if res.stdout != "" {
			t.Errorf("stdout must be empty, got: %q", res.stdout)
		}
		if res.stderr != "" {
			t.Errorf("stderr must be empty, got: %q", res.stderr)
		}
	}
	if tc.WantInStdout != "" && !strings.Contains(res.stdout, tc.WantInStdout) {
		t.Errorf("stdout must contain %q, got: %q", tc.WantInStdout, res.stdout)
	}
	if tc.WantInStderr != "" && !strings.Contains(res.stderr, tc.WantInStderr) {
		t.Errorf("stderr must contain %q, got: %q", tc.WantInStderr, res.stderr)
	}
}
