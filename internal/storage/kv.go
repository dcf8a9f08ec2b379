package storage

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("not found")

type KV struct {
	db *sql.DB
}

func NewKV(db *sql.DB) *KV {
	kv := KV{db: db}

	return &kv
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	r := s.db.QueryRowContext(ctx, "select value from kv where key = ?", key)
	if r.Err() != nil {
		return nil, r.Err()
	}

	var value []byte
	err := r.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, "insert into kv (key, value) values (?, ?) on conflict(key) do update set value = excluded.value", key, value)
	if err != nil {
		return err
	}

	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "delete from kv where key = ?", key)

	return err
}
