package tenant

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store keys shared with the rest of the platform. The file store also
// carries legacy auth token aliases, so the key space is wider than
// tenant identity alone.
const (
	KeyTenantID   = "tenantId"
	KeyBusinessID = "businessId"
)

// Store is a single layered source the resolver consults. Implementations
// must be safe for concurrent use.
type Store interface {
	// Name identifies the store in logs.
	Name() string
	// Get returns the value for key, or empty string if absent.
	Get(key string) (string, error)
	// Set writes the value for key.
	Set(key, value string) error
}

// MemoryStore is the in-process application context store. First in the
// resolver's priority order after explicit overrides.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// FileStore persists key/value state to a JSON file. It is the platform
// rendition of browser persistent storage: tenant identity and token
// aliases live here.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed store at path. The directory is
// created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Name() string { return "file" }

func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		// A corrupt or unreadable file must not make the store
		// permanently unwritable.
		values = make(map[string]string)
	}
	values[key] = value
	return s.write(values)
}

func (s *FileStore) read() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *FileStore) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	// Write-then-rename so a crash never leaves a half-written file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// CookieStore mirrors the tenant ID into a cookie jar for the SSR /
// middleware access path. Lowest-priority source.
type CookieStore struct {
	jar    http.CookieJar
	origin *url.URL
}

// NewCookieStore creates a cookie-backed store for the given origin URL.
func NewCookieStore(jar http.CookieJar, origin *url.URL) *CookieStore {
	return &CookieStore{jar: jar, origin: origin}
}

func (s *CookieStore) Name() string { return "cookie" }

func (s *CookieStore) Get(key string) (string, error) {
	for _, c := range s.jar.Cookies(s.origin) {
		if c.Name == key {
			return c.Value, nil
		}
	}
	return "", nil
}

func (s *CookieStore) Set(key, value string) error {
	s.jar.SetCookies(s.origin, []*http.Cookie{{
		Name:    key,
		Value:   value,
		Path:    "/",
		Expires: time.Now().Add(365 * 24 * time.Hour),
	}})
	return nil
}
