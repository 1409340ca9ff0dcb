package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/storefront/internal/database"
)

// TableName はキー・バリューを保存するテーブル名。
// PostgreSQLではマイグレーションで、SQLiteでは起動時に作成する。
const TableName = "client_storage"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS client_storage (
	storage_key   TEXT PRIMARY KEY,
	storage_value TEXT NOT NULL,
	updated_at    INTEGER NOT NULL
)`

// SQLStore はSQLデータベースをバックエンドとするStore。
type SQLStore struct {
	db       *sql.DB
	getQuery string
	setQuery string
	delQuery string
}

// OpenSQLite はSQLiteファイルのStoreを開き、テーブルがなければ作成する。
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		return nil, errors.New("storage: sqlite path is required")
	}
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", TableName, err)
	}
	return newSQLStore(db, "?", "?", "?"), nil
}

// OpenPostgres はPostgreSQLのStoreを開く。
// テーブルは storefront migrate で作成済みであること。
func OpenPostgres(ctx context.Context, databaseURL string) (*SQLStore, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres storage: %w", err)
	}
	return newSQLStore(db, "$1", "$2", "$3"), nil
}

func newSQLStore(db *sql.DB, p1, p2, p3 string) *SQLStore {
	return &SQLStore{
		db:       db,
		getQuery: fmt.Sprintf(
			`SELECT storage_value FROM %s WHERE storage_key = %s`, TableName, p1),
		setQuery: fmt.Sprintf(
			`INSERT INTO %s (storage_key, storage_value, updated_at) VALUES (%s, %s, %s)
			 ON CONFLICT (storage_key) DO UPDATE
			 SET storage_value = excluded.storage_value, updated_at = excluded.updated_at`,
			TableName, p1, p2, p3),
		delQuery: fmt.Sprintf(
			`DELETE FROM %s WHERE storage_key = %s`, TableName, p1),
	}
}

// Get はキーの値を返す。
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return []byte(value), nil
}

// Set はキーに値を保存する。既存の値は上書きする。
func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.setQuery, key, string(value), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Delete はキーを削除する。存在しない場合も成功する。
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.delQuery, key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Close はデータベース接続を閉じる。
func (s *SQLStore) Close() error {
	return s.db.Close()
}
