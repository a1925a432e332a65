package job

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store is the in-memory job registry. It is the single source of truth for
// job status: the HTTP handlers create, read and delete records, the
// processor transitions them. All access goes through the mutex.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Record
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Record)}
}

// Create registers a new queued job and returns a copy of its record. The
// id is a fresh UUID; the job's directory is <baseDir>/<id> when baseDir is
// non-empty.
func (s *Store) Create(baseDir string) Record {
	id := uuid.NewString()
	dir := ""
	if baseDir != "" {
		dir = filepath.Join(baseDir, id)
	}
	rec := &Record{
		ID:          id,
		Status:      StatusQueued,
		Dir:         dir,
		SubmittedAt: time.Now(),
	}

	s.mu.Lock()
	s.jobs[rec.ID] = rec
	s.mu.Unlock()

	return *rec
}

// Get returns a copy of the record, or ErrNotFound.
func (s *Store) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

// Transition moves a job to a new status and applies the given fields.
// Moves must be strictly forward; terminal states never change again.
// Timestamps only ever advance.
func (s *Store) Transition(id string, to Status, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if to.rank() < 0 || rec.Status.terminal() || to.rank() <= rec.Status.rank() {
		return ErrBadTransition
	}

	rec.Status = to
	if fields.StartedAt != nil {
		rec.StartedAt = fields.StartedAt
	}
	if fields.CompletedAt != nil {
		rec.CompletedAt = fields.CompletedAt
	}
	// Result and error fields are mutually exclusive by construction:
	// complete carries a result path, error carries messages.
	switch to {
	case StatusComplete:
		rec.ResultPath = fields.ResultPath
		rec.Error = ""
		rec.ErrorDetail = ""
	case StatusError:
		rec.ResultPath = ""
		rec.Error = fields.Error
		rec.ErrorDetail = fields.ErrorDetail
	}
	return nil
}

// Delete removes the record and the job's on-disk directory. The record is
// always gone afterward, even when the directory removal partially fails.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.jobs, id)
	dir := rec.Dir
	s.mu.Unlock()

	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("job_id", id).Str("dir", dir).
				Msg("failed to remove job directory")
		}
	}
	return nil
}

// Counts tallies records by status for the health summary.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{Total: len(s.jobs)}
	for _, rec := range s.jobs {
		switch rec.Status {
		case StatusQueued:
			c.Queued++
		case StatusProcessing:
			c.Processing++
		case StatusComplete:
			c.Complete++
		case StatusError:
			c.Error++
		}
	}
	return c
}

// Snapshot returns copies of all records.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, *rec)
	}
	return out
}

// KnownDirs reports the job directories currently owned by live records,
// keyed by directory path. The server uses this to sweep orphans at boot.
func (s *Store) KnownDirs() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dirs := make(map[string]bool, len(s.jobs))
	for _, rec := range s.jobs {
		if rec.Dir != "" {
			dirs[rec.Dir] = true
		}
	}
	return dirs
}
