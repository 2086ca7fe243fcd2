// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package store lays benchmark-run artifacts out on local disk and
// reads them back. Each run lives in its own directory named by the
// run's UUID, with the uploaded results document stored verbatim.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/TechEmpower/tfb-status-sub003/internal/noop"
	"github.com/TechEmpower/tfb-status-sub003/internal/try"

	"golang.org/x/sync/errgroup"
)

// ResultsFile is the name under which the uploaded results document
// is stored inside a run directory.
const ResultsFile = "results.json"

// ErrNotFound is returned when no run with the given UUID exists.
var ErrNotFound = errors.New("run not found")

// Meta summarizes a stored benchmark run.
type Meta struct {
	UUID        string            `json:"uuid"`
	Name        string            `json:"name"`
	Environment string            `json:"environment"`
	Completed   map[string]string `json:"completed,omitempty"`
	UploadedAt  time.Time         `json:"uploadedAt"`
}

// InvalidDocumentError occurs when an uploaded results document is
// missing required fields or is not valid JSON.
type InvalidDocumentError struct {
	Reason string
}

// Error implements the error interface.
func (e InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid results document: %s", e.Reason)
}

// Option represents configurable attributes of [Store].
type Option func(*Store)

// LogHandler configures the logging sink.
func LogHandler(h slog.Handler) Option {
	return func(s *Store) {
		s.log = slog.New(h)
	}
}

// Store reads and writes run artifacts under a data directory.
type Store struct {
	dir string
	log *slog.Logger
}

// New initializes a [Store], creating the data directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir: dir,
		log: slog.New(noop.LogHandler{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type document struct {
	UUID        string            `json:"uuid"`
	Name        string            `json:"name"`
	Environment string            `json:"environment"`
	Completed   map[string]string `json:"completed"`
}

// Save parses and validates a results document and stores it under
// the run's directory. The document is written to a temporary file
// first so a failed upload never leaves a partial run behind.
func (s *Store) Save(r io.Reader) (Meta, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Meta{}, err
	}

	var doc document
	err = json.Unmarshal(b, &doc)
	if err != nil {
		return Meta{}, InvalidDocumentError{Reason: err.Error()}
	}
	if doc.UUID == "" {
		return Meta{}, InvalidDocumentError{Reason: "missing uuid"}
	}
	if strings.ContainsAny(doc.UUID, "/\\.") {
		return Meta{}, InvalidDocumentError{Reason: "uuid contains path characters"}
	}
	if doc.Name == "" {
		return Meta{}, InvalidDocumentError{Reason: "missing name"}
	}

	runDir := filepath.Join(s.dir, doc.UUID)
	err = os.MkdirAll(runDir, 0o755)
	if err != nil {
		return Meta{}, err
	}

	tmp, err := os.CreateTemp(runDir, ".upload-*")
	if err != nil {
		return Meta{}, err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(b)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return Meta{}, err
	}

	err = os.Rename(tmpName, filepath.Join(runDir, ResultsFile))
	if err != nil {
		os.Remove(tmpName)
		return Meta{}, err
	}

	meta := metaFromDocument(doc, time.Now().UTC())
	s.log.LogAttrs(
		nil,
		slog.LevelInfo,
		"stored run",
		slog.String("uuid", doc.UUID),
		slog.String("name", doc.Name),
	)
	return meta, nil
}

// Meta returns the stored metadata for a run.
func (s *Store) Meta(uuid string) (_ Meta, err error) {
	f, err := s.Open(uuid, ResultsFile)
	if err != nil {
		return Meta{}, err
	}
	defer try.Close(&err, f)

	var doc document
	err = json.NewDecoder(f).Decode(&doc)
	if err != nil {
		return Meta{}, InvalidDocumentError{Reason: err.Error()}
	}

	uploadedAt := time.Time{}
	if info, serr := os.Stat(filepath.Join(s.dir, uuid, ResultsFile)); serr == nil {
		uploadedAt = info.ModTime().UTC()
	}
	return metaFromDocument(doc, uploadedAt), nil
}

// List returns metadata for every stored run, most recent first.
// Unreadable runs are skipped rather than failing the whole listing.
func (s *Store) List() ([]Meta, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	read := make([]Meta, len(dirEntries))
	ok := make([]bool, len(dirEntries))

	var g errgroup.Group
	g.SetLimit(8)
	for i, de := range dirEntries {
		if !de.IsDir() {
			continue
		}

		i, uuid := i, de.Name()
		g.Go(func() error {
			meta, err := s.Meta(uuid)
			if err != nil {
				s.log.LogAttrs(
					nil,
					slog.LevelWarn,
					"skipping unreadable run",
					slog.String("uuid", uuid),
					slog.String("error", err.Error()),
				)
				return nil
			}
			read[i] = meta
			ok[i] = true
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		return nil, err
	}

	metas := make([]Meta, 0, len(dirEntries))
	for i, meta := range read {
		if ok[i] {
			metas = append(metas, meta)
		}
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UploadedAt.After(metas[j].UploadedAt)
	})
	return metas, nil
}

// Open opens a stored artifact by its path relative to the run
// directory. Paths attempting to escape the run directory are
// rejected as not found.
func (s *Store) Open(uuid, rel string) (io.ReadCloser, error) {
	if uuid == "" || strings.ContainsAny(uuid, "/\\") {
		return nil, ErrNotFound
	}

	rel = filepath.Clean(strings.TrimPrefix(rel, "/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, uuid, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func metaFromDocument(doc document, uploadedAt time.Time) Meta {
	return Meta{
		UUID:        doc.UUID,
		Name:        doc.Name,
		Environment: doc.Environment,
		Completed:   doc.Completed,
		UploadedAt:  uploadedAt,
	}
}
