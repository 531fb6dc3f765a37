package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"

	"github.com/consensus-shipyard/ipc-checkpointer/helper/common"
	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

// FileName is the name of the journal database inside the data directory
const FileName = "journal.db"

const readOnlyTimeout = time.Second

var (
	ErrClosed = errors.New("journal closed")
	ErrInUse  = errors.New("journal is locked by a running checkpointer")

	submissionsBucket = []byte("submissions")

	keySeparator = []byte{0x00}
)

/*
Bolt DB schema:

submissions/
|--> (child + 0x00 + direction + 0x00 + epoch + validator) -> *SubmissionRecord (json marshalled)
*/

// Journal is the on disk history of confirmed checkpoint submissions
type Journal struct {
	db     *bolt.DB
	logger hclog.Logger
}

// Filter selects journal records. Empty fields match everything.
type Filter struct {
	Child     string
	Direction types.Direction
	// Limit keeps the last records of the listing only, zero means no limit
	Limit int
}

// NewJournal opens the journal database at path, creating it if needed
func NewJournal(path string, logger hclog.Logger) (*Journal, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	j := &Journal{
		db:     db,
		logger: logger.Named("journal"),
	}

	if err := j.setupDB(); err != nil {
		_ = db.Close()

		return nil, err
	}

	return j, nil
}

// OpenReadOnly opens an existing journal for listing. It fails with ErrInUse
// while a checkpointer holds the database.
func OpenReadOnly(path string, logger hclog.Logger) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{ReadOnly: true, Timeout: readOnlyTimeout})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, ErrInUse
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	return &Journal{
		db:     db,
		logger: logger.Named("journal"),
	}, nil
}

func (j *Journal) setupDB() error {
	return j.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(submissionsBucket); err != nil {
			return fmt.Errorf("failed to create bucket=%s: %w", string(submissionsBucket), err)
		}

		return nil
	})
}

func recordPrefix(child string, dir types.Direction) []byte {
	return bytes.Join([][]byte{[]byte(child), []byte(dir), {}}, keySeparator)
}

func recordKey(r *types.SubmissionRecord) []byte {
	return bytes.Join([][]byte{
		recordPrefix(r.Child, r.Direction),
		common.EncodeUint64ToBytes(uint64(r.Epoch)),
		[]byte(r.Validator),
	}, nil)
}

// Record implements checkpoint.Recorder
func (j *Journal) Record(r *types.SubmissionRecord) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}

	err = j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(submissionsBucket).Put(recordKey(r), raw)
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}

	if err == nil {
		j.logger.Trace("submission recorded", "child", r.Child, "direction", r.Direction, "epoch", r.Epoch)
	}

	return err
}

// List returns the records matching filter ordered by child, direction and epoch
func (j *Journal) List(filter Filter) ([]*types.SubmissionRecord, error) {
	var (
		records []*types.SubmissionRecord
		prefix  []byte
	)

	if filter.Child != "" {
		prefix = []byte(filter.Child + string(keySeparator))
		if filter.Direction != "" {
			prefix = recordPrefix(filter.Child, filter.Direction)
		}
	}

	err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(submissionsBucket)
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var record *types.SubmissionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("corrupted journal entry %x: %w", k, err)
			}

			if filter.Direction != "" && record.Direction != filter.Direction {
				continue
			}

			records = append(records, record)
		}

		return nil
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return nil, ErrClosed
	}

	if err != nil {
		return nil, err
	}

	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[len(records)-filter.Limit:]
	}

	return records, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
