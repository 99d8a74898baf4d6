package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// TokenStore keeps the device's customer token in a small JSON file. The
// token is minted on first use and never regenerated while the file exists.
type TokenStore struct {
	path  string
	mu    sync.Mutex
	token string
}

type storedToken struct {
	CustomerToken string `json:"customer_token"`
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Token returns the persisted token, creating and saving one if needed.
func (s *TokenStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		var st storedToken
		if jsonErr := json.Unmarshal(data, &st); jsonErr == nil && st.CustomerToken != "" {
			s.token = st.CustomerToken
			return s.token, nil
		}
		// unreadable file: treated like cleared storage
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read token store: %w", err)
	}

	token := uuid.NewString()
	if err := s.save(token); err != nil {
		return "", err
	}
	s.token = token
	return token, nil
}

// Reset forgets the token, as when the browser's storage is cleared. The
// next Token call mints a new identity.
func (s *TokenStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset token store: %w", err)
	}
	return nil
}

func (s *TokenStore) save(token string) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	data, err := json.Marshal(storedToken{CustomerToken: token})
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write token store: %w", err)
	}
	return nil
}
