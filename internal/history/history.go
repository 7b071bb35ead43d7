// Package history keeps the bounded, newest-first log of completed uploads.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/kvstore"
	"github.com/google/uuid"
)

// MaxRecords is the ledger capacity. Older records are dropped on append.
const MaxRecords = 50

// Record is one successful upload. Records are never mutated after append.
type Record struct {
	ID            string `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	Filename      string `json:"filename"`
	RemoteItemID  string `json:"remoteItemId"`
	RemoteViewURL string `json:"remoteViewUrl"`
	AlbumID       string `json:"albumId,omitempty"`
}

// Entry is the caller-supplied part of a Record.
type Entry struct {
	Filename      string
	RemoteItemID  string
	RemoteViewURL string
	AlbumID       string
}

type Ledger struct {
	store kvstore.Store
	now   func() time.Time
	newID func() string
}

func NewLedger(store kvstore.Store) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// Append records e with a fresh id and the current time, keeping only the
// newest MaxRecords records.
func (l *Ledger) Append(ctx context.Context, e Entry) (Record, error) {
	rec := Record{
		ID:            l.newID(),
		Timestamp:     l.now().UnixMilli(),
		Filename:      e.Filename,
		RemoteItemID:  e.RemoteItemID,
		RemoteViewURL: e.RemoteViewURL,
		AlbumID:       e.AlbumID,
	}

	err := l.store.Update(ctx, kvstore.KeyUploadHistory, func(raw []byte) ([]byte, error) {
		records, err := decode(raw)
		if err != nil {
			return nil, err
		}
		records = append([]Record{rec}, records...)
		if len(records) > MaxRecords {
			records = records[:MaxRecords]
		}
		return json.Marshal(records)
	})
	if err != nil {
		return Record{}, fmt.Errorf("append history: %w", err)
	}
	return rec, nil
}

// Remove deletes the record with the given id and reports whether it existed.
func (l *Ledger) Remove(ctx context.Context, id string) (bool, error) {
	var found bool
	err := l.store.Update(ctx, kvstore.KeyUploadHistory, func(raw []byte) ([]byte, error) {
		records, err := decode(raw)
		if err != nil {
			return nil, err
		}
		for i, r := range records {
			if r.ID == id {
				found = true
				return json.Marshal(append(records[:i:i], records[i+1:]...))
			}
		}
		return nil, kvstore.ErrSkip
	})
	if err != nil {
		return false, fmt.Errorf("remove history %s: %w", id, err)
	}
	return found, nil
}

// List returns all records, newest first.
func (l *Ledger) List(ctx context.Context) ([]Record, error) {
	raw, err := l.store.Get(ctx, kvstore.KeyUploadHistory)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	records, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// Clear drops every record.
func (l *Ledger) Clear(ctx context.Context) error {
	if err := l.store.Delete(ctx, kvstore.KeyUploadHistory); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func decode(raw []byte) ([]Record, error) {
	if raw == nil {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return records, nil
}
