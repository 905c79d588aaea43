// Package journal records in-flight rewrites in a bbolt database so a run
// killed mid-rewrite can be found and cleaned up by the next invocation.
package journal

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/rohankatakam/dropdays/internal/errors"
)

const bucketName = "runs"

// FileName is the default journal file name inside the git dir.
const FileName = "dropdays.db"

// Status is where a recorded run ended up.
type Status string

const (
	// StatusRewriting means the run entered the rewrite and has not
	// reported back.
	StatusRewriting Status = "rewriting"
	StatusUpdated   Status = "refs-updated"
	StatusAborted   Status = "aborted"
	// StatusRecovered marks a run closed by recovery.
	StatusRecovered Status = "recovered"
)

// RefState is a target ref's value before the run started.
type RefState struct {
	Name string `json:"name"`
	Old  string `json:"old"`
}

// Run is one journal entry.
type Run struct {
	ID         string     `json:"id"`
	Strategy   string     `json:"strategy"`
	Refs       []RefState `json:"refs"`
	ScratchRef string     `json:"scratch_ref,omitempty"`
	Stashed    bool       `json:"stashed"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ErrNotFound is returned for an unknown run id.
var ErrNotFound = stderrors.New("run not found")

// Journal is an open journal database. The file lock held by bbolt makes
// it exclusive to one process.
type Journal struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens or creates the journal at path. It fails with a precondition
// error when another process holds it.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to create journal directory")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		if stderrors.Is(err, bolt.ErrTimeout) {
			return nil, errors.WrapPrecondition(err, "another dropdays run holds %s", path)
		}
		return nil, errors.FileSystemErrorf(err, "failed to open journal %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.FileSystemErrorf(err, "failed to initialize journal")
	}

	return &Journal{db: db, now: time.Now}, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin records run as rewriting. An empty ID is filled with a new UUID.
func (j *Journal) Begin(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Status = StatusRewriting
	run.StartedAt = j.now().UTC()
	run.FinishedAt = nil
	return j.put(run)
}

// Finish closes the run with the given status.
func (j *Journal) Finish(id string, status Status) error {
	run, err := j.Get(id)
	if err != nil {
		return err
	}
	finished := j.now().UTC()
	run.Status = status
	run.FinishedAt = &finished
	return j.put(run)
}

// Get loads a run by id.
func (j *Journal) Get(id string) (*Run, error) {
	var run Run
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Pending returns runs still marked as rewriting, oldest first.
func (j *Journal) Pending() ([]Run, error) {
	all, err := j.Runs()
	if err != nil {
		return nil, err
	}
	pending := make([]Run, 0)
	for _, r := range all {
		if r.Status == StatusRewriting {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// Runs returns every recorded run, oldest first.
func (j *Journal) Runs() ([]Run, error) {
	var runs []Run
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, v []byte) error {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			runs = append(runs, r)
			return nil
		})
	})
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to read journal")
	}
	sort.SliceStable(runs, func(a, b int) bool { return runs[a].StartedAt.Before(runs[b].StartedAt) })
	return runs, nil
}

func (j *Journal) put(run *Run) error {
	err := j.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(run.ID), data)
	})
	if err != nil {
		return errors.FileSystemErrorf(err, "failed to record run %s", run.ID)
	}
	return nil
}
