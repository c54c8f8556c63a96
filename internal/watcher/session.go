package watcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Session is the watcher's persistent state. The watermark survives restarts
// so detections seen before a restart are not re-alerted.
type Session struct {
	LastCheckTime time.Time `json:"last_check_time"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LoadSession reads a session file. A missing file yields a zero session, so
// the first poll falls back to the server's default lookback.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Session{}, nil
		}
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SaveSession writes the session file atomically via a temp file rename.
func SaveSession(session *Session, path string) error {
	session.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
