// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package envflag provides a wrapper around the standard flag package, allowing
// flags to be overridden by environment variables.
package envflag

import (
	"flag"
	"fmt"
	"strconv"
	"time"
)

// Type is a constraint that permits only types supported by envflag package.
type Type interface {
	int | int64 | float64 | bool | string | time.Duration
}

// Value sets up a flag with the given name, default value, and usage
// information.
//
// If the environment variable specified by envName is set and parses as T, it
// overrides the flag's default value. An explicit command-line flag still wins
// over the environment.
func Value[T Type](
	name, envName string, value T, usage string,
	fs *flag.FlagSet, getenv func(string) string,
) *T {
	result := value
	if s := getenv(envName); s != "" {
		if parsed, err := parse[T](s); err == nil {
			result = parsed
		}
	}

	usage += " Can be overridden by " + envName + " environment variable."

	v := &flagValue[T]{value: &result}
	fs.Var(v, name, usage)
	return &result
}

type flagValue[T Type] struct {
	value *T
}

func (f *flagValue[T]) String() string {
	if f.value == nil {
		return ""
	}
	switch v := any(*f.value).(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case time.Duration:
		return v.String()
	}
	return ""
}

func (f *flagValue[T]) Set(s string) error {
	v, err := parse[T](s)
	if err != nil {
		return err
	}
	*f.value = v
	return nil
}

// IsBoolFlag lets boolean flags be set without a value.
func (f *flagValue[T]) IsBoolFlag() bool {
	var zero T
	_, ok := any(zero).(bool)
	return ok
}

func parse[T Type](s string) (T, error) {
	var (
		zero T
		v    any
		err  error
	)
	switch any(zero).(type) {
	case int:
		v, err = strconv.Atoi(s)
	case int64:
		v, err = strconv.ParseInt(s, 10, 64)
	case float64:
		v, err = strconv.ParseFloat(s, 64)
	case bool:
		v, err = strconv.ParseBool(s)
	case string:
		v = s
	case time.Duration:
		v, err = time.ParseDuration(s)
	default:
		return zero, fmt.Errorf("envflag: unsupported type %T", zero)
	}
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
