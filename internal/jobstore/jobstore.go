// Package jobstore is the durable per-run checkpoint that lets the Cache
// Orchestrator resume a basemap build after a crash or manual restart.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agrc/honeycomb/internal/errs"
	"github.com/google/uuid"
)

const fileName = "current_job.json"

// CacheArgs is the set of inputs that reproduces the call that started a
// Job, so a resume can replay it faithfully.
type CacheArgs struct {
	Basemap     string   `json:"basemap"`
	MissingOnly bool     `json:"missingOnly"`
	SkipUpdate  bool     `json:"skipUpdate"`
	SkipTest    bool     `json:"skipTest"`
	SpotPath    string   `json:"spotPath,omitempty"`
	Levels      []int    `json:"levels,omitempty"`
	GroupLayers []string `json:"groupLayers,omitempty"`
}

// Job is the durable record of one in-flight build. It is a tagged
// struct with one field per persisted property rather than a free-form
// map, so every mutation is a typed, reviewable change.
type Job struct {
	ID                    string      `json:"id"`
	CacheArgs             CacheArgs   `json:"cacheArgs"`
	DataUpdated           bool        `json:"dataUpdated"`
	TestCacheComplete     bool        `json:"testCacheComplete"`
	CacheExtentsCompleted []string    `json:"cacheExtentsCompleted"`
	CachingComplete       bool        `json:"cachingComplete"`
	ExplodingComplete     bool        `json:"explodingComplete"`
	RestartTimes          []time.Time `json:"restartTimes"`
}

// HasPhase reports whether key has already been recorded as complete.
func (j *Job) HasPhase(key string) bool {
	for _, k := range j.CacheExtentsCompleted {
		if k == key {
			return true
		}
	}
	return false
}

// Store is the Job Store: a single JSON file, written atomically via a
// temp-file-then-rename so a crash between writes can never leave a
// half-written file behind.
type Store struct {
	dir string
}

// New returns a Store rooted at dir (typically $HONEYCOMB_SHARE).
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, fileName)
}

// Load reads the current Job, returning (nil, nil) if none exists.
func (s *Store) Load() (*Job, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading job file: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, &errs.JobStateError{Detail: fmt.Sprintf("corrupt job file: %v", err)}
	}
	return &job, nil
}

// Start creates a new Job for args. It fails if a Job is already present
// unless allowExisting is set (the resume path is expected to call Load
// instead of Start).
func (s *Store) Start(args CacheArgs, allowExisting bool) (*Job, error) {
	existing, err := s.Load()
	if err != nil {
		return nil, err
	}
	if existing != nil && !allowExisting {
		return nil, &errs.JobStateError{Detail: "a job is already in progress; use resume"}
	}

	job := &Job{
		ID:                    uuid.NewString(),
		CacheArgs:             args,
		CacheExtentsCompleted: []string{},
		RestartTimes:          []time.Time{},
	}

	if err := s.write(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Update applies mutate to the current Job and persists the result
// atomically. It fails with a JobStateError if no Job exists.
func (s *Store) Update(mutate func(*Job)) (*Job, error) {
	job, err := s.Load()
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, &errs.JobStateError{Detail: "no job has been created"}
	}

	mutate(job)

	if err := s.write(job); err != nil {
		return nil, err
	}
	return job, nil
}

// AppendPhase records key as a completed phase if it is not already
// present. Phase keys are append-only: once present they are never
// removed within the same run.
func (s *Store) AppendPhase(key string) (*Job, error) {
	return s.Update(func(j *Job) {
		if !j.HasPhase(key) {
			j.CacheExtentsCompleted = append(j.CacheExtentsCompleted, key)
		}
	})
}

// RecordRestart appends now to RestartTimes, used by the resume path.
func (s *Store) RecordRestart(now time.Time) (*Job, error) {
	return s.Update(func(j *Job) {
		j.RestartTimes = append(j.RestartTimes, now)
	})
}

// Finish deletes the Job file on successful completion.
func (s *Store) Finish() error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing job file: %w", err)
	}
	return nil
}

func (s *Store) write(job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating job directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, fileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp job file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp job file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp job file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp job file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming job file into place: %w", err)
	}

	return nil
}
