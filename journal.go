package kernel

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var journalBucket = []byte("tasks")

// journal persists a record of every task's terminal outcome to a bbolt
// database, for post-mortem inspection of a kernel run (WithJournal).
type journal struct {
	db *bolt.DB
}

// journalEntry is the value stored per task, keyed by its big-endian
// TaskID so iteration order matches spawn order.
type journalEntry struct {
	ID        TaskID    `json:"id"`
	Name      string    `json:"name"`
	SpawnedAt time.Time `json:"spawned_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error     string    `json:"error,omitempty"`
}

func openJournal(path string) (*journal, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(journalBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &journal{db: db}, nil
}

func (j *journal) record(t *Task) {
	entry := journalEntry{
		ID:         t.id,
		Name:       t.name,
		SpawnedAt:  t.spawnedAt,
		FinishedAt: time.Now(),
	}
	if t.resultErr != nil {
		entry.Error = t.resultErr.Error()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(journalBucket)
		return b.Put(taskIDKey(t.id), data)
	})
}

// Entries returns every recorded entry, ordered by TaskID.
func (j *journal) Entries() ([]journalEntry, error) {
	var out []journalEntry
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(journalBucket)
		return b.ForEach(func(_, v []byte) error {
			var e journalEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("journal: decode entry: %w", err)
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

func (j *journal) close() error {
	return j.db.Close()
}

func taskIDKey(id TaskID) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return buf[:]
}
