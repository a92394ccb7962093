package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrTokenNotFound is returned by a TokenStore that holds no token for a key.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore persists OAuth tokens by key. Implementations are safe for
// concurrent use.
type TokenStore interface {
	Load(ctx context.Context, key string) (*oauth2.Token, error)
	Save(ctx context.Context, key string, tok *oauth2.Token) error
}

// storedToken is the serialized token shape shared by the file store.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

func sealToken(enc *TokenEncryption, tok *oauth2.Token) (storedToken, error) {
	access, err := enc.Encrypt(tok.AccessToken)
	if err != nil {
		return storedToken{}, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := enc.Encrypt(tok.RefreshToken)
	if err != nil {
		return storedToken{}, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return storedToken{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}, nil
}

func openToken(enc *TokenEncryption, st storedToken) (*oauth2.Token, error) {
	access, err := enc.Decrypt(st.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refresh, err := enc.Decrypt(st.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    st.TokenType,
		Expiry:       st.Expiry,
	}, nil
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]oauth2.Token
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]oauth2.Token)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[key]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &tok, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[key] = *tok
	return nil
}

// FileStore keeps all tokens in one JSON file, keyed by name. Writes go to a
// temporary file that is renamed over the original.
type FileStore struct {
	path string
	enc  *TokenEncryption
	mu   sync.Mutex
}

// NewFileStore creates a FileStore at path. enc may be nil.
func NewFileStore(path string, enc *TokenEncryption) *FileStore {
	return &FileStore{path: path, enc: enc}
}

func (s *FileStore) Load(_ context.Context, key string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}
	st, ok := all[key]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return openToken(s.enc, st)
}

func (s *FileStore) Save(_ context.Context, key string, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	st, err := sealToken(s.enc, tok)
	if err != nil {
		return err
	}
	all[key] = st

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]storedToken, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]storedToken), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	all := make(map[string]storedToken)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", s.path, err)
	}
	return all, nil
}
