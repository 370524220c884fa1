package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lkschedule/schedule-sync/internal/crypto"
)

const (
	pagesDir         = "artifacts/pages"
	screenshotsDir   = "artifacts/screenshots"
	sessionStateFile = "storage_state.json"
	reportFile       = "last_run.json"
)

// Cookie is a persisted browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // seconds since epoch, -1 for session cookies
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// SessionState is the browser state kept between runs.
type SessionState struct {
	Cookies []Cookie  `json:"cookies"`
	SavedAt time.Time `json:"saved_at"`
}

// Storage handles files in the data directory.
type Storage struct {
	dataDir string
	enc     *crypto.Encryptor
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/")), nil
}

// New creates a Storage rooted at dataDir, creating the directory if needed. enc may be
// nil to store sealed files in plain text.
func New(dataDir string, enc *crypto.Encryptor) (*Storage, error) {
	dataDir, err := ExpandPath(dataDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
		enc:     enc,
	}, nil
}

// Dir returns the data directory.
func (s *Storage) Dir() string {
	return s.dataDir
}

// Path resolves name against the data directory unless it is absolute.
func (s *Storage) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dataDir, name)
}

func weekName(from, to time.Time, ext string) string {
	return fmt.Sprintf("%s_%s%s", from.Format("2006-01-02"), to.Format("2006-01-02"), ext)
}

// PagePath returns where the page of week [from, to] is stored.
func (s *Storage) PagePath(from, to time.Time) string {
	return filepath.Join(s.dataDir, pagesDir, weekName(from, to, ".html"))
}

// ScreenshotPath returns where the screenshot of week [from, to] is stored.
func (s *Storage) ScreenshotPath(from, to time.Time) string {
	return filepath.Join(s.dataDir, screenshotsDir, weekName(from, to, ".png"))
}

// SavePage stores the retrieved page of week [from, to] and returns its path.
func (s *Storage) SavePage(from, to time.Time, page string) (string, error) {
	path := s.PagePath(from, to)
	if err := writeFileAtomic(path, []byte(page)); err != nil {
		return "", fmt.Errorf("writing page: %w", err)
	}
	return path, nil
}

// SaveScreenshot stores a PNG screenshot of week [from, to] and returns its path.
func (s *Storage) SaveScreenshot(from, to time.Time, png []byte) (string, error) {
	path := s.ScreenshotPath(from, to)
	if err := writeFileAtomic(path, png); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	return path, nil
}

// WriteSealed writes data to name, encrypted when an encryption key is configured.
func (s *Storage) WriteSealed(name string, data []byte) error {
	sealed, err := s.enc.Seal(data)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", name, err)
	}
	return writeFileAtomic(s.Path(name), sealed)
}

// ReadSealed reads a file written by WriteSealed. Plain files are returned as is.
func (s *Storage) ReadSealed(name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, err
	}
	plain, err := s.enc.Open(data)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", name, err)
	}
	return plain, nil
}

// LoadSessionState loads the saved browser state. A missing file yields an empty
// state.
func (s *Storage) LoadSessionState() (*SessionState, error) {
	data, err := s.ReadSealed(sessionStateFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &SessionState{Cookies: make([]Cookie, 0)}, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}
	if state.Cookies == nil {
		state.Cookies = make([]Cookie, 0)
	}
	return &state, nil
}

// SaveSessionState persists the browser state.
func (s *Storage) SaveSessionState(state *SessionState) error {
	state.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}
	if err := s.WriteSealed(sessionStateFile, data); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	return nil
}

// SaveReport stores the report of the last run.
func (s *Storage) SaveReport(report interface{}) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := writeFileAtomic(s.Path(reportFile), data); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// LoadReport decodes the last run report into v. found is false when no run has been
// recorded yet.
func (s *Storage) LoadReport(v interface{}) (found bool, err error) {
	data, err := os.ReadFile(s.Path(reportFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading report: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing report: %w", err)
	}
	return true, nil
}

// writeFileAtomic writes data through a temp file in the same directory and renames it
// into place with 0600 permissions.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schedule-sync-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
