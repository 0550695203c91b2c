// Package journal persists attestations that were still unavailable when
// their poll budget ran out, so they can be fetched again later.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

const pendingPrefix = "pending/"

// Entry is one pending attestation.
type Entry struct {
	Verifier config.Verifier
	ChainID  uint16
	Emitter  vaa.Address
	Sequence string
	// Operation names the call that published the message.
	Operation  string
	TxHash     string
	RecordedAt time.Time
}

type record struct {
	Verifier   uint8     `json:"verifier"`
	ChainID    uint16    `json:"chainId"`
	Emitter    string    `json:"emitter"`
	Sequence   string    `json:"sequence"`
	Operation  string    `json:"operation,omitempty"`
	TxHash     string    `json:"txHash,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Key orders entries by verifier, chain, emitter and numeric sequence.
func (e Entry) Key() ([]byte, error) {
	seq, err := strconv.ParseUint(e.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid sequence %q: %v", e.Sequence, err)
	}
	return []byte(fmt.Sprintf("%s%d/%05d/%s/%020d", pendingPrefix, e.Verifier, e.ChainID, e.Emitter, seq)), nil
}

func (e Entry) marshal() ([]byte, error) {
	return json.Marshal(record{
		Verifier:   uint8(e.Verifier),
		ChainID:    e.ChainID,
		Emitter:    e.Emitter.Hex(),
		Sequence:   e.Sequence,
		Operation:  e.Operation,
		TxHash:     e.TxHash,
		RecordedAt: e.RecordedAt,
	})
}

func unmarshal(data []byte) (Entry, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Entry{}, err
	}
	emitter, err := vaa.ParseAddress(r.Emitter)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Verifier:   config.Verifier(r.Verifier),
		ChainID:    r.ChainID,
		Emitter:    emitter,
		Sequence:   r.Sequence,
		Operation:  r.Operation,
		TxHash:     r.TxHash,
		RecordedAt: r.RecordedAt,
	}, nil
}

// Journal is a leveldb backed set of pending entries.
type Journal struct {
	db  *leveldb.DB
	now func() time.Time
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %v", err)
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %v", path, err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// OpenStorage opens a journal on an existing leveldb storage.
func OpenStorage(stor storage.Storage) (*Journal, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %v", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores e, replacing an entry for the same message. A zero
// RecordedAt is set to the current time.
func (j *Journal) Record(e Entry) error {
	key, err := e.Key()
	if err != nil {
		return err
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = j.now().UTC()
	}
	value, err := e.marshal()
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %v", err)
	}
	return j.db.Put(key, value, nil)
}

// Has reports whether the message of e is pending.
func (j *Journal) Has(e Entry) (bool, error) {
	key, err := e.Key()
	if err != nil {
		return false, err
	}
	return j.db.Has(key, nil)
}

// Pending lists every entry in key order.
func (j *Journal) Pending() ([]Entry, error) {
	iter := j.db.NewIterator(util.BytesPrefix([]byte(pendingPrefix)), nil)
	defer iter.Release()

	var entries []Entry
	for iter.Next() {
		e, err := unmarshal(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("corrupt journal entry %s: %v", iter.Key(), err)
		}
		entries = append(entries, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %v", err)
	}
	return entries, nil
}

// Resolve removes e. Resolving an absent entry is not an error.
func (j *Journal) Resolve(e Entry) error {
	key, err := e.Key()
	if err != nil {
		return err
	}
	if err := j.db.Delete(key, nil); err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return err
	}
	return nil
}
