// Package checkpoint implements CheckpointStore (spec §4.I): a small
// key/value store, keyed by job name, that records how far a backfill
// job has progressed so an interrupted run can resume past whatever
// chunk last committed. Grounded on the pack's own
// internal/controller/checkpoint.Manager (tombee-conductor) — a
// directory of one JSON file per run, guarded by a mutex — generalized
// here to job names instead of run IDs, and hardened with an atomic
// write-temp-then-rename (plus fsync) so a crash mid-write can never
// leave a corrupt or partially-written record behind.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/albapepper/racesync/internal/raceerr"
)

// Record is the durable progress marker for one job (spec §4.I).
type Record struct {
	Job                string    `json:"job"`
	LastCompletedChunk int       `json:"last_completed_chunk"`
	TotalChunks        int       `json:"total_chunks"`
	LastChunkEndDate   string    `json:"last_chunk_end_date"`
	Timestamp          time.Time `json:"timestamp"`
}

// Store persists one Record per job under Dir, one file per job name.
// Writes are serialised per job (spec §5 "CheckpointStore writes are
// serialised per job name").
type Store struct {
	dir string

	mu      sync.Mutex
	jobLock map[string]*sync.Mutex
}

// New creates (if necessary) dir and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{dir: dir, jobLock: make(map[string]*sync.Mutex)}, nil
}

// Load reads the current Record for job, or the zero Record (chunk -1,
// meaning "nothing completed yet") if none exists.
func (s *Store) Load(job string) (Record, error) {
	path := s.path(job)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{Job: job, LastCompletedChunk: -1}, nil
		}
		return Record{}, fmt.Errorf("read checkpoint %s: %w", job, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode checkpoint %s: %w", job, err)
	}
	return rec, nil
}

// Advance writes a new Record for job, rejecting any attempt to move
// lastCompletedChunk backwards (spec invariant 7: monotonically
// non-decreasing). The write is atomic: a temp file is written, fsynced,
// then renamed over the job's record file, so a crash mid-write never
// leaves a torn record on disk.
func (s *Store) Advance(job string, lastCompletedChunk, totalChunks int, lastChunkEndDate string, now time.Time) error {
	lock := s.lockFor(job)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Load(job)
	if err != nil {
		return err
	}
	if lastCompletedChunk < current.LastCompletedChunk {
		return fmt.Errorf("checkpoint %s: chunk %d precedes completed chunk %d: %w",
			job, lastCompletedChunk, current.LastCompletedChunk, raceerr.InvariantViolation)
	}

	rec := Record{
		Job:                job,
		LastCompletedChunk: lastCompletedChunk,
		TotalChunks:        totalChunks,
		LastChunkEndDate:   lastChunkEndDate,
		Timestamp:          now,
	}
	return s.writeAtomic(job, rec)
}

func (s *Store) writeAtomic(job string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", job, err)
	}

	dest := s.path(job)
	tmp, err := os.CreateTemp(s.dir, job+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file %s: %w", job, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint temp file %s: %w", job, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsync checkpoint temp file %s: %w", job, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint temp file %s: %w", job, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint temp file %s: %w", job, err)
	}
	return nil
}

// List returns every job's Record currently on disk, sorted by job name,
// for the `list` CLI mode (spec §6).
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoint dir: %w", err)
	}
	var jobs []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		jobs = append(jobs, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(jobs)

	records := make([]Record, 0, len(jobs))
	for _, job := range jobs {
		rec, err := s.Load(job)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) path(job string) string {
	return filepath.Join(s.dir, job+".json")
}

// lockFor returns the per-job mutex, creating it on first use.
func (s *Store) lockFor(job string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.jobLock[job]
	if !ok {
		lock = &sync.Mutex{}
		s.jobLock[job] = lock
	}
	return lock
}
