package auth

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/beekhof/eventsync/internal/errors"
)

// ErrCorruptToken marks a token file that exists but cannot be decoded. The
// caller can discard it and authorize again.
var ErrCorruptToken = stderrors.New("token file is corrupt")

// FileTokenStore keeps the OAuth token as JSON in a single file. The file
// holds a refresh token and is only ever readable by its owner.
type FileTokenStore struct {
	Path string
}

// NewFileTokenStore creates a new FileTokenStore with the given path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path}
}

// SaveToken replaces the token file. Missing parent directories are created.
// The new content is written to a temporary file and renamed into place so a
// crash never leaves a truncated token behind.
func (store *FileTokenStore) SaveToken(token *oauth2.Token) error {
	const op errors.Op = "auth.SaveToken"

	data, err := json.Marshal(token)
	if err != nil {
		return errors.E(op, errors.Auth, fmt.Errorf("failed to marshal token: %w", err))
	}

	dir := filepath.Dir(store.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.E(op, errors.Auth, fmt.Errorf("failed to create token directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return errors.E(op, errors.Auth, fmt.Errorf("failed to write token file: %w", err))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.E(op, errors.Auth, fmt.Errorf("failed to write token file: %w", err))
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.E(op, errors.Auth, fmt.Errorf("failed to restrict token file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return errors.E(op, errors.Auth, fmt.Errorf("failed to write token file: %w", err))
	}
	if err := os.Rename(tmp.Name(), store.Path); err != nil {
		return errors.E(op, errors.Auth, fmt.Errorf("failed to replace token file: %w", err))
	}
	return nil
}

// LoadToken reads the stored token. A missing file is not an error: it
// returns nil, nil and the caller runs the authorization flow.
func (store *FileTokenStore) LoadToken() (*oauth2.Token, error) {
	const op errors.Op = "auth.LoadToken"

	data, err := os.ReadFile(store.Path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.E(op, errors.Auth, fmt.Errorf("failed to read token file: %w", err))
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, errors.E(op, errors.Auth, fmt.Errorf("%s: %w: %v", store.Path, ErrCorruptToken, err))
	}
	return &token, nil
}
