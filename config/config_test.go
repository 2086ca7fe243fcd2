// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRead(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a source contains invalid yaml", func(t *testing.T) {
			_, err := Read(FromYaml(strings.NewReader("\thello")))

			var yerr InvalidYamlError
			assert.ErrorAs(t, err, &yerr)
		})
	})

	t.Run("will merge sources", func(t *testing.T) {
		t.Run("if later sources override earlier ones", func(t *testing.T) {
			mgr, err := Read(
				FromYaml(strings.NewReader(`
http:
  host: 0.0.0.0
  port: 8080
`)),
				FromYaml(strings.NewReader(`
http:
  port: 9090
`)),
			)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				HTTP struct {
					Host string `config:"host"`
					Port int    `config:"port"`
				} `config:"http"`
			}
			err = mgr.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}

			assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
			assert.Equal(t, 9090, cfg.HTTP.Port)
		})
	})
}

func TestManagerUnmarshal(t *testing.T) {
	t.Run("will coerce string values", func(t *testing.T) {
		t.Run("if the target field is a time.Duration", func(t *testing.T) {
			mgr, err := Read(FromYaml(strings.NewReader(`
http:
  graceful_shutdown_timeout: 15s
`)))
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				HTTP struct {
					GracefulTimeout time.Duration `config:"graceful_shutdown_timeout"`
				} `config:"http"`
			}
			err = mgr.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}

			assert.Equal(t, 15*time.Second, cfg.HTTP.GracefulTimeout)
		})

		t.Run("if the target field implements encoding.TextUnmarshaler", func(t *testing.T) {
			mgr, err := Read(FromYaml(strings.NewReader(`
logging:
  level: WARN
`)))
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Logging struct {
					Level slog.Level `config:"level"`
				} `config:"logging"`
			}
			err = mgr.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}

			assert.Equal(t, slog.LevelWarn, cfg.Logging.Level)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a string cannot be coerced to the field type", func(t *testing.T) {
			mgr, err := Read(FromYaml(strings.NewReader(`
http:
  graceful_shutdown_timeout: not-a-duration
`)))
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				HTTP struct {
					GracefulTimeout time.Duration `config:"graceful_shutdown_timeout"`
				} `config:"http"`
			}
			err = mgr.Unmarshal(&cfg)

			var terr TypeCoercionError
			assert.ErrorAs(t, err, &terr)
		})
	})
}

type envSource map[string]string

func (src envSource) Apply(store Store) error {
	m := make(Map)
	for k, v := range src {
		m[k] = v
	}
	return m.Apply(store)
}

func TestFromEnv(t *testing.T) {
	t.Run("will apply environment variables", func(t *testing.T) {
		t.Run("if they are present in the process environment", func(t *testing.T) {
			t.Setenv("DATA_DIR", "/var/lib/tfb")

			mgr, err := Read(FromEnv())
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				DataDir string `config:"DATA_DIR"`
			}
			err = mgr.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}

			assert.Equal(t, "/var/lib/tfb", cfg.DataDir)
		})
	})
}

func TestMap(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a key was previously set to a scalar and is reused as a map", func(t *testing.T) {
			_, err := Read(
				FromYaml(strings.NewReader("http: 8080")),
				FromYaml(strings.NewReader("http:\n  port: 8080")),
			)

			var uerr UnexpectedKeyValueTypeError
			if !assert.ErrorAs(t, err, &uerr) {
				return
			}
			assert.Equal(t, "http", uerr.Key)
		})
	})

	t.Run("will set nested values", func(t *testing.T) {
		t.Run("if the source walks into sub maps", func(t *testing.T) {
			store := make(Map)
			err := envSource{"a": "1"}.Apply(store)
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, "1", store["a"])
		})
	})
}
