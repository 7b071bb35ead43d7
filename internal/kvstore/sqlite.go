package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/dbx"
)

var areaTables = map[Area]string{
	AreaLocal: "local_kv",
	AreaSync:  "sync_kv",
}

// SQLiteStore implements Store on one table of the photodrop database.
type SQLiteStore struct {
	db     *sql.DB
	area   Area
	table  string
	now    func() time.Time
	broker broker
}

// NewSQLiteStore binds a Store to the table of the given area.
func NewSQLiteStore(db *sql.DB, area Area) (*SQLiteStore, error) {
	table, ok := areaTables[area]
	if !ok {
		return nil, fmt.Errorf("unknown store area %q", area)
	}
	return &SQLiteStore{db: db, area: area, table: table, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, s.db, key)
}

func (s *SQLiteStore) get(ctx context.Context, q dbx.DBTX, key string) ([]byte, error) {
	var value []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM `+s.table+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", s.area, key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.set(ctx, s.db, key, value); err != nil {
		return err
	}
	s.broker.publish(Change{Area: s.area, Key: key, Value: value})
	return nil
}

func (s *SQLiteStore) set(ctx context.Context, q dbx.DBTX, key string, value []byte) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO `+s.table+` (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set %s[%s]: %w", s.area, key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := s.delete(ctx, s.db, key); err != nil {
		return err
	}
	s.broker.publish(Change{Area: s.area, Key: key, Deleted: true})
	return nil
}

func (s *SQLiteStore) delete(ctx context.Context, q dbx.DBTX, key string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s[%s]: %w", s.area, key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.area, err)
	}
	s.broker.publish(Change{Area: s.area, Cleared: true})
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM `+s.table)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.area, err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", s.area, err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", s.area, err)
	}
	return result, nil
}

func (s *SQLiteStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	var (
		next    []byte
		changed bool
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		next, err = fn(current)
		if errors.Is(err, ErrSkip) {
			return nil
		}
		if err != nil {
			return err
		}
		changed = true
		if next == nil {
			return s.delete(ctx, tx, key)
		}
		return s.set(ctx, tx, key, next)
	})
	if err != nil {
		return err
	}
	if changed {
		s.broker.publish(Change{Area: s.area, Key: key, Value: next, Deleted: next == nil})
	}
	return nil
}

func (s *SQLiteStore) Subscribe(buffer int) (<-chan Change, func()) {
	return s.broker.subscribe(buffer)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
