package google

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/officebot/internal/db"
)

// SQLiteStore keeps tokens in the oauth_tokens table. Reads use the shared
// connection pool, writes go through the serialized db.Worker.
type SQLiteStore struct {
	conn   *sql.DB
	writer *db.Worker
	enc    *TokenEncryption
	now    func() time.Time
}

// NewSQLiteStore creates a store on a migrated database. enc may be nil.
func NewSQLiteStore(conn *sql.DB, writer *db.Worker, enc *TokenEncryption) *SQLiteStore {
	return &SQLiteStore{conn: conn, writer: writer, enc: enc, now: time.Now}
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (*oauth2.Token, error) {
	var (
		st       storedToken
		expiryMs int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, token_type, expiry_ms
		 FROM oauth_tokens WHERE provider = ?`, key).
		Scan(&st.AccessToken, &st.RefreshToken, &st.TokenType, &expiryMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token %q: %w", key, err)
	}
	if expiryMs > 0 {
		st.Expiry = time.UnixMilli(expiryMs).UTC()
	}
	return openToken(s.enc, st)
}

func (s *SQLiteStore) Save(ctx context.Context, key string, tok *oauth2.Token) error {
	st, err := sealToken(s.enc, tok)
	if err != nil {
		return err
	}
	var expiryMs int64
	if !st.Expiry.IsZero() {
		expiryMs = st.Expiry.UnixMilli()
	}
	now := s.now().UnixMilli()

	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO oauth_tokens (provider, access_token, refresh_token, token_type, expiry_ms, updated_at_ms)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(provider) DO UPDATE SET
			   access_token = excluded.access_token,
			   refresh_token = excluded.refresh_token,
			   token_type = excluded.token_type,
			   expiry_ms = excluded.expiry_ms,
			   updated_at_ms = excluded.updated_at_ms`,
			key, st.AccessToken, st.RefreshToken, st.TokenType, expiryMs, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save token %q: %w", key, err)
	}
	return nil
}
