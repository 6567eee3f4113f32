package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sendhisword/portal/internal/portal/domain"
	"github.com/sendhisword/portal/internal/portal/store"
	"github.com/sendhisword/portal/pkg/idx"
	"github.com/sendhisword/portal/pkg/sealbox"
	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed session store. Token columns are sealed with
// the provided box before they touch disk.
type Store struct {
	db  *sql.DB
	box *sealbox.Box
	dsn string
}

func NewStore(dsn string, box *sealbox.Box) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		box: box,
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Current returns the persisted session, or store.ErrNotFound. A row whose
// sealed tokens can no longer be opened (rotated seal key) is treated as
// not found and removed, so the portal degrades to signed-out instead of
// failing startup.
func (s *Store) Current(ctx context.Context) (*store.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile, access_token, refresh_token, expires_at, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT 1;
	`)

	var (
		rec          store.Record
		id           string
		profileJSON  []byte
		sealedAccess []byte
		sealedRfrsh  []byte
		expiresAt    sql.NullInt64
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(&id, &profileJSON, &sealedAccess, &sealedRfrsh, &expiresAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load session: %w", err)
	}

	rec.ID = idx.ID(id)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if expiresAt.Valid {
		rec.Session.ExpiresAt = time.Unix(expiresAt.Int64, 0).UTC()
	}

	var profile domain.Profile
	if err := json.Unmarshal(profileJSON, &profile); err != nil {
		return nil, fmt.Errorf("sqlite: decode profile: %w", err)
	}
	rec.Session.Profile = profile

	access, errA := s.box.OpenSealed(sealedAccess)
	refresh, errR := s.box.OpenSealed(sealedRfrsh)
	if errA != nil || errR != nil {
		_ = s.Clear(ctx)
		return nil, store.ErrNotFound
	}
	rec.Session.AccessToken = string(access)
	rec.Session.RefreshToken = string(refresh)

	return &rec, nil
}

// Put makes rec the current session, replacing any previous row.
func (s *Store) Put(ctx context.Context, rec *store.Record) error {
	profileJSON, err := json.Marshal(rec.Session.Profile)
	if err != nil {
		return fmt.Errorf("sqlite: encode profile: %w", err)
	}

	sealedAccess, err := s.box.Seal([]byte(rec.Session.AccessToken))
	if err != nil {
		return fmt.Errorf("sqlite: seal access token: %w", err)
	}
	sealedRefresh, err := s.box.Seal([]byte(rec.Session.RefreshToken))
	if err != nil {
		return fmt.Errorf("sqlite: seal refresh token: %w", err)
	}

	var expiresAt any
	if !rec.Session.ExpiresAt.IsZero() {
		expiresAt = rec.Session.ExpiresAt.Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions;`); err != nil {
		return fmt.Errorf("sqlite: replace session: %w", err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, profile, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?);
	`, rec.ID.String(), profileJSON, sealedAccess, sealedRefresh, expiresAt,
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite: insert session: %w", err)
	}

	return tx.Commit()
}

// Clear removes every persisted session. Idempotent.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions;`)
	if err != nil {
		return fmt.Errorf("sqlite: clear sessions: %w", err)
	}
	return nil
}
