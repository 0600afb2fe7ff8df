package data

import (
	"sync"

	"gorm.io/gorm"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

// Settings is a read-through cache of the settings table.
type Settings struct {
	mu     sync.RWMutex
	values map[string]string
}

// LoadSettings reads every row of the settings table.
func LoadSettings(db *gorm.DB) (*Settings, error) {
	s := &Settings{}
	if err := s.Refresh(db); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh reloads the cache from db.
func (s *Settings) Refresh(db *gorm.DB) error {
	var rows []types.Setting
	if err := db.Find(&rows).Error; err != nil {
		return err
	}

	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Name] = r.Value
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Get returns the cached value for name. A nil Settings has no values.
func (s *Settings) Get(name string) string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

// NewStaticSettings builds a cache from fixed values.
func NewStaticSettings(values map[string]string) *Settings {
	s := &Settings{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}
