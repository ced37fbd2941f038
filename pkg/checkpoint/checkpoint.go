package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"igtail/pkg/logger"
	"igtail/pkg/models"
)

const currentVersion = 1

// Checkpoint is what previous runs learned about one target.
type Checkpoint struct {
	Username   string    `json:"username"`
	UserID     string    `json:"user_id,omitempty"`
	NewestPost time.Time `json:"newest_post"`
	Collected  int       `json:"collected"`
	Runs       int       `json:"runs"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
}

// MinTimestamp is the listing cutoff for the next incremental run.
func (c *Checkpoint) MinTimestamp() int64 {
	if c == nil || c.NewestPost.IsZero() {
		return 0
	}
	return c.NewestPost.Unix()
}

// Manager keeps one checkpoint file per target under a directory.
type Manager struct {
	dir    string
	mu     sync.Mutex
	now    func() time.Time
	logger logger.Logger
}

// NewManager stores checkpoints under dataDir/checkpoints. An empty dataDir
// selects the per-user data directory of the platform.
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		var err error
		if dataDir, err = DataDirectory(); err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
	}

	dir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		dir:    dir,
		now:    time.Now,
		logger: logger.WithComponent("checkpoint"),
	}, nil
}

func (m *Manager) path(username string) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s.checkpoint.json", username))
}

// Load returns the checkpoint of username, or nil if none was written yet.
func (m *Manager) Load(username string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(username)
}

func (m *Manager) load(username string) (*Checkpoint, error) {
	file, err := os.Open(m.path(username))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &cp, nil
}

// Save writes cp atomically.
func (m *Manager) Save(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(cp)
}

func (m *Manager) save(cp *Checkpoint) error {
	cp.UpdatedAt = m.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
	cp.Version = currentVersion

	target := m.path(cp.Username)
	tempPath := target + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"username":    cp.Username,
		"newest_post": cp.NewestPost,
	})
	return nil
}

// Record folds a finished collection into the checkpoint of username. The
// newest post time only moves forward.
func (m *Manager) Record(username string, data *models.CollectedData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp, err := m.load(username)
	if err != nil {
		return err
	}
	if cp == nil {
		cp = &Checkpoint{Username: username}
	}

	if summary, ok := data.Account.Get(); ok {
		cp.UserID = summary.UserID
	}
	if newest := data.NewestPost(); newest.After(cp.NewestPost) {
		cp.NewestPost = newest
	}
	parsed, _ := data.Counts()
	cp.Collected += parsed
	cp.Runs++

	return m.save(cp)
}

// MinTimestamp returns the stored cutoff for username, or 0 when unknown.
// Read failures are logged and treated as unknown.
func (m *Manager) MinTimestamp(username string) int64 {
	cp, err := m.Load(username)
	if err != nil {
		m.logger.WithError(err).WarnWithFields("Ignoring unreadable checkpoint", map[string]interface{}{
			"username": username,
		})
		return 0
	}
	return cp.MinTimestamp()
}

// Delete removes the checkpoint of username.
func (m *Manager) Delete(username string) error {
	if err := os.Remove(m.path(username)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.InfoWithFields("Checkpoint deleted", map[string]interface{}{"username": username})
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists(username string) bool {
	_, err := os.Stat(m.path(username))
	return err == nil
}

// DataDirectory returns the appropriate data directory for the current OS
func DataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "igtail")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "igtail")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "igtail")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "igtail")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
