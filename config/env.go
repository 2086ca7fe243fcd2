// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"os"
	"strings"
)

// Env is a [Source] backed by the environment variables of the
// current process. Each variable becomes a config key under its own
// name, which lets deployment environments override values read from
// a config file.
type Env struct {
	environ func() []string
}

// FromEnv returns a [Source] that reads the process environment.
func FromEnv() Env {
	return Env{
		environ: os.Environ,
	}
}

// Apply implements the [Source] interface.
func (src Env) Apply(store Store) error {
	m := make(Map)
	for _, pair := range src.environ() {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		m[name] = value
	}
	return m.Apply(store)
}
