package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"igtail/pkg/accounts/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLiteStore keeps accounts in a SQLite table. Save rewrites the table in a
// single transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dsn and applies pending migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, login, password, session_id, token, status, last_checked, fail_count, headers
		 FROM accounts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var (
			acc         Account
			status      string
			lastChecked sql.NullString
			headers     sql.NullString
		)
		if err := rows.Scan(&acc.ID, &acc.Login, &acc.Password, &acc.SessionID, &acc.Token,
			&status, &lastChecked, &acc.FailCount, &headers); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}

		if acc.Status, err = ParseStatus(status); err != nil {
			return nil, err
		}
		if lastChecked.Valid && lastChecked.String != "" {
			t, err := time.Parse(timeLayout, lastChecked.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_checked for %s: %w", acc.Login, err)
			}
			acc.LastChecked = &t
		}
		if headers.Valid && headers.String != "" {
			if err := json.Unmarshal([]byte(headers.String), &acc.Headers); err != nil {
				return nil, fmt.Errorf("parse headers for %s: %w", acc.Login, err)
			}
		}
		accounts = append(accounts, &acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (s *SQLiteStore) Save(ctx context.Context, accounts []*Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO accounts (position, id, login, password, session_id, token, status, last_checked, fail_count, headers)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, acc := range accounts {
		var lastChecked sql.NullString
		if acc.LastChecked != nil {
			lastChecked = sql.NullString{String: acc.LastChecked.UTC().Format(timeLayout), Valid: true}
		}
		var headers sql.NullString
		if len(acc.Headers) > 0 {
			raw, err := json.Marshal(acc.Headers)
			if err != nil {
				return fmt.Errorf("marshal headers for %s: %w", acc.Login, err)
			}
			headers = sql.NullString{String: string(raw), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, i, acc.ID, acc.Login, acc.Password, acc.SessionID, acc.Token,
			string(acc.Status), lastChecked, acc.FailCount, headers); err != nil {
			return fmt.Errorf("insert account %s: %w", acc.Login, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accounts: %w", err)
	}
	return nil
}
