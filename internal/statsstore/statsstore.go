// Package statsstore keeps a per-basemap timing history used for the
// operator-facing `stats` report.
package statsstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const fileName = "stats.json"

// Task is one of the two measured phases of a basemap run.
type Task string

const (
	TaskCache  Task = "cache"
	TaskUpload Task = "upload"
)

// minDuration is the shortest measured run that counts as a real run; a
// run below it is treated as a no-op (e.g. an upload with nothing to do).
const minDuration = 60 * time.Second

// Run is one completed, recordable duration.
type Run struct {
	Duration       time.Duration `json:"duration"`
	CompletionDate time.Time     `json:"completionDate"`
}

type taskStats struct {
	Start time.Time `json:"start"`
	Runs  []Run     `json:"runs"`
}

type basemapStats struct {
	Cache  taskStats `json:"cache"`
	Upload taskStats `json:"upload"`
}

type document struct {
	Basemaps map[string]basemapStats `json:"basemaps"`
}

// Store is the durable, append-only timing history for every basemap.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New returns a Store rooted at dir.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, fileName)
}

func (s *Store) load() (document, error) {
	doc := document{Basemaps: map[string]basemapStats{}}

	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("reading stats file: %w", err)
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing stats file: %w", err)
	}
	if doc.Basemaps == nil {
		doc.Basemaps = map[string]basemapStats{}
	}
	return doc, nil
}

func (s *Store) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating stats directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, fileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp stats file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp stats file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp stats file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming stats file into place: %w", err)
	}
	return nil
}

func getTask(b basemapStats, task Task) taskStats {
	if task == TaskUpload {
		return b.Upload
	}
	return b.Cache
}

func setTask(b *basemapStats, task Task, t taskStats) {
	if task == TaskUpload {
		b.Upload = t
		return
	}
	b.Cache = t
}

// RecordStart marks the beginning of task for basemap.
func (s *Store) RecordStart(basemap string, task Task) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	stats := doc.Basemaps[basemap]
	t := getTask(stats, task)
	t.Start = time.Now()
	setTask(&stats, task, t)
	doc.Basemaps[basemap] = stats

	return s.save(doc)
}

// RecordFinish marks the completion of task for basemap. If no matching
// RecordStart was ever recorded, this logs a warning and is a no-op. A
// measured duration under 60 seconds is discarded rather than recorded,
// since it almost always reflects a skipped or near-instant step rather
// than a real run.
func (s *Store) RecordFinish(basemap string, task Task) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	stats := doc.Basemaps[basemap]
	t := getTask(stats, task)
	if t.Start.IsZero() {
		s.logger.Warn("no start time recorded for task", "basemap", basemap, "task", task)
		return nil
	}

	duration := time.Since(t.Start)
	if duration >= minDuration {
		t.Runs = append(t.Runs, Run{Duration: duration, CompletionDate: time.Now()})
	}
	t.Start = time.Time{}
	setTask(&stats, task, t)
	doc.Basemaps[basemap] = stats

	return s.save(doc)
}

// BasemapSummary is one row of the `stats` report.
type BasemapSummary struct {
	Basemap             string
	AverageCacheRuns     int
	AverageCacheDuration time.Duration
	AverageUploadRuns     int
	AverageUploadDuration time.Duration
}

// Summary computes average durations per basemap/task for the `stats` CLI command.
func (s *Store) Summary() ([]BasemapSummary, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]BasemapSummary, 0, len(doc.Basemaps))
	for basemap, stats := range doc.Basemaps {
		out = append(out, BasemapSummary{
			Basemap:               basemap,
			AverageCacheRuns:       len(stats.Cache.Runs),
			AverageCacheDuration:   average(stats.Cache.Runs),
			AverageUploadRuns:      len(stats.Upload.Runs),
			AverageUploadDuration:  average(stats.Upload.Runs),
		})
	}
	return out, nil
}

func average(runs []Run) time.Duration {
	if len(runs) == 0 {
		return 0
	}
	var total time.Duration
	for _, r := range runs {
		total += r.Duration
	}
	return total / time.Duration(len(runs))
}
