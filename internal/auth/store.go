package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

const (
	keyringService = "gmail-reply-mcp"
	keyringItemKey = "oauth-token"
)

// FileStore keeps the token as JSON on disk.
type FileStore struct {
	Path string
}

// Load reads the token file. A missing file yields ErrTokenNotSet.
func (s FileStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("File %s doesn't exist, but will be created at the end", s.Path)

			return nil, ErrTokenNotSet
		}

		return nil, fmt.Errorf("os.Open failed: %w", err)
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("json.NewDecoder.Decode failed: %w", err)
	}

	return token, nil
}

func (s FileStore) String() string {
	return "file " + s.Path
}

// Save overwrites the token file, readable by the owner only.
func (s FileStore) Save(tok *oauth2.Token) error {
	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("os.OpenFile failed: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("json.NewEncoder.Encode failed: %w", err)
	}

	return nil
}

// KeyringStore keeps the token in the OS credential store.
type KeyringStore struct {
	ring keyring.Keyring
}

// ErrNoFilePassword is returned by the encrypted file fallback when no
// password source is configured.
var ErrNoFilePassword = errors.New("keyring file password not configured")

// FilePassword picks the password source for the encrypted file keyring:
// a fixed value when set, the terminal when interactive, otherwise an error.
func FilePassword(password string, interactive bool) keyring.PromptFunc {
	switch {
	case password != "":
		return keyring.FixedStringPrompt(password)
	case interactive:
		return keyring.TerminalPrompt
	default:
		return func(string) (string, error) {
			return "", ErrNoFilePassword
		}
	}
}

// OpenKeyringStore opens the system keyring; fileDir backs the encrypted file
// fallback used where no native keyring is available, unlocked by password.
func OpenKeyringStore(fileDir string, password keyring.PromptFunc) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         password,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("keyring.Open failed: %w", err)
	}

	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) String() string {
	return "keyring"
}

// Load reads the token item. A missing item yields ErrTokenNotSet.
func (s *KeyringStore) Load() (*oauth2.Token, error) {
	item, err := s.ring.Get(keyringItemKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrTokenNotSet
	}
	if err != nil {
		return nil, fmt.Errorf("ring.Get failed: %w", err)
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal(item.Data, token); err != nil {
		return nil, fmt.Errorf("json.Unmarshal failed: %w", err)
	}

	return token, nil
}

// Save replaces the token item.
func (s *KeyringStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("json.Marshal failed: %w", err)
	}

	err = s.ring.Set(keyring.Item{
		Key:         keyringItemKey,
		Data:        data,
		Label:       "Gmail OAuth token",
		Description: "OAuth2 token used by " + keyringService,
	})
	if err != nil {
		return fmt.Errorf("ring.Set failed: %w", err)
	}

	return nil
}
