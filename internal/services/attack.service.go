package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"aegisnet/internal/models"
)

// AttackFlagStore owns the attack_status.json file shared with the dashboard
type AttackFlagStore struct {
	path   string
	mu     sync.Mutex
	events EventPublisher
}

// NewAttackFlagStore manages the flag at path; pub may be nil
func NewAttackFlagStore(path string, pub EventPublisher) *AttackFlagStore {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &AttackFlagStore{path: path, events: pub}
}

// Path returns the flag file location
func (a *AttackFlagStore) Path() string {
	return a.path
}

// Set records an unresolved attack detected at ts
func (a *AttackFlagStore) Set(ts time.Time) error {
	flag := models.AttackFlag{AttackDetected: true, Timestamp: models.ISOTime(ts)}
	data, err := json.Marshal(flag)
	if err != nil {
		return err
	}

	a.mu.Lock()
	err = writeFileAtomic(a.path, data)
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write attack flag: %w", err)
	}
	a.events.Publish(Event{Type: EventAttack, Timestamp: ts, Data: flag})
	return nil
}

// Get reads the flag; ok is false when no flag file exists
func (a *AttackFlagStore) Get() (models.AttackFlag, bool, error) {
	a.mu.Lock()
	data, err := os.ReadFile(a.path)
	a.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return models.AttackFlag{}, false, nil
	}
	if err != nil {
		return models.AttackFlag{}, false, fmt.Errorf("read attack flag: %w", err)
	}

	var flag models.AttackFlag
	if err := json.Unmarshal(data, &flag); err != nil {
		return models.AttackFlag{}, false, fmt.Errorf("decode attack flag: %w", err)
	}
	return flag, true, nil
}

// Clear removes the flag; a missing file is already clear
func (a *AttackFlagStore) Clear() error {
	a.mu.Lock()
	err := os.Remove(a.path)
	a.mu.Unlock()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear attack flag: %w", err)
	}
	a.events.Publish(Event{Type: EventAttack, Timestamp: time.Now(), Data: models.AttackFlag{}})
	return nil
}

// writeFileAtomic replaces path so readers never see a partial file
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
