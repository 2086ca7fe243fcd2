// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package store

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreSave(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		testCases := []struct {
			Name     string
			Document string
		}{
			{
				Name:     "if the document is not valid JSON",
				Document: "not json",
			},
			{
				Name:     "if the document is missing its uuid",
				Document: `{"name": "continuous run"}`,
			},
			{
				Name:     "if the document is missing its name",
				Document: `{"uuid": "abc-123"}`,
			},
			{
				Name:     "if the uuid contains path characters",
				Document: `{"uuid": "../escape", "name": "run"}`,
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				s, err := New(t.TempDir())
				if !assert.Nil(t, err) {
					return
				}

				_, err = s.Save(strings.NewReader(testCase.Document))

				var derr InvalidDocumentError
				assert.ErrorAs(t, err, &derr)
			})
		}
	})

	t.Run("will store the document", func(t *testing.T) {
		t.Run("if it is well formed", func(t *testing.T) {
			s, err := New(t.TempDir())
			if !assert.Nil(t, err) {
				return
			}

			meta, err := s.Save(strings.NewReader(`{
				"uuid": "abc-123",
				"name": "continuous run",
				"environment": "Citrine",
				"completed": {"gemini": "2026-08-01T00:00:00Z"}
			}`))
			if !assert.Nil(t, err) {
				return
			}

			assert.Equal(t, "abc-123", meta.UUID)
			assert.Equal(t, "continuous run", meta.Name)
			assert.Equal(t, "Citrine", meta.Environment)
			assert.Contains(t, meta.Completed, "gemini")
			assert.False(t, meta.UploadedAt.IsZero())
		})

		t.Run("if the run is uploaded again", func(t *testing.T) {
			s, err := New(t.TempDir())
			if !assert.Nil(t, err) {
				return
			}

			_, err = s.Save(strings.NewReader(`{"uuid": "abc-123", "name": "first"}`))
			if !assert.Nil(t, err) {
				return
			}
			_, err = s.Save(strings.NewReader(`{"uuid": "abc-123", "name": "second"}`))
			if !assert.Nil(t, err) {
				return
			}

			meta, err := s.Meta("abc-123")
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, "second", meta.Name)
		})
	})
}

func TestStoreMeta(t *testing.T) {
	t.Run("will return ErrNotFound", func(t *testing.T) {
		t.Run("if no run with the uuid exists", func(t *testing.T) {
			s, err := New(t.TempDir())
			if !assert.Nil(t, err) {
				return
			}

			_, err = s.Meta("missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	})
}

func TestStoreList(t *testing.T) {
	t.Run("will return an empty list", func(t *testing.T) {
		t.Run("if no runs have been stored", func(t *testing.T) {
			s, err := New(t.TempDir())
			if !assert.Nil(t, err) {
				return
			}

			metas, err := s.List()
			if !assert.Nil(t, err) {
				return
			}
			assert.Empty(t, metas)
		})
	})

	t.Run("will list every stored run", func(t *testing.T) {
		t.Run("if multiple runs have been stored", func(t *testing.T) {
			s, err := New(t.TempDir())
			if !assert.Nil(t, err) {
				return
			}

			for _, doc := range []string{
				`{"uuid": "run-1", "name": "first"}`,
				`{"uuid": "run-2", "name": "second"}`,
			} {
				_, err := s.Save(strings.NewReader(doc))
				if !assert.Nil(t, err) {
					return
				}
			}

			metas, err := s.List()
			if !assert.Nil(t, err) {
				return
			}
			assert.Len(t, metas, 2)
		})
	})
}

func TestStoreOpen(t *testing.T) {
	t.Run("will return ErrNotFound", func(t *testing.T) {
		testCases := []struct {
			Name string
			UUID string
			Rel  string
		}{
			{
				Name: "if the run does not exist",
				UUID: "missing",
				Rel:  ResultsFile,
			},
			{
				Name: "if the artifact does not exist",
				UUID: "abc-123",
				Rel:  "no-such-file.txt",
			},
			{
				Name: "if the uuid contains a path separator",
				UUID: "abc/123",
				Rel:  ResultsFile,
			},
			{
				Name: "if the path tries to escape the run directory",
				UUID: "abc-123",
				Rel:  "../../etc/passwd",
			},
			{
				Name: "if the path is the run directory itself",
				UUID: "abc-123",
				Rel:  ".",
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				s, err := New(t.TempDir())
				if !assert.Nil(t, err) {
					return
				}

				_, err = s.Save(strings.NewReader(`{"uuid": "abc-123", "name": "run"}`))
				if !assert.Nil(t, err) {
					return
				}

				_, err = s.Open(testCase.UUID, testCase.Rel)
				assert.ErrorIs(t, err, ErrNotFound)
			})
		}
	})

	t.Run("will open the artifact", func(t *testing.T) {
		t.Run("if it exists under the run directory", func(t *testing.T) {
			s, err := New(t.TempDir())
			if !assert.Nil(t, err) {
				return
			}

			doc := `{"uuid": "abc-123", "name": "run"}`
			_, err = s.Save(strings.NewReader(doc))
			if !assert.Nil(t, err) {
				return
			}

			f, err := s.Open("abc-123", ResultsFile)
			if !assert.Nil(t, err) {
				return
			}
			defer f.Close()

			b, err := io.ReadAll(f)
			if !assert.Nil(t, err) {
				return
			}
			assert.JSONEq(t, doc, string(b))
		})

		t.Run("if the path carries a redundant leading slash", func(t *testing.T) {
			s, err := New(t.TempDir())
			if !assert.Nil(t, err) {
				return
			}

			_, err = s.Save(strings.NewReader(`{"uuid": "abc-123", "name": "run"}`))
			if !assert.Nil(t, err) {
				return
			}

			f, err := s.Open("abc-123", "/"+ResultsFile)
			if !assert.Nil(t, err) {
				return
			}
			f.Close()
		})
	})
}
