package telegram

import (
	"sync"

	"github.com/germesbot/germes/internal/models"
)

const modeShards = 32

// ModeStore holds the per-conversation interaction mode. In-memory
// only: a restart resets every chat to text mode. Keys are sharded so
// busy chats do not contend on one lock.
type ModeStore struct {
	shards [modeShards]modeShard
}

type modeShard struct {
	mu    sync.RWMutex
	modes map[int64]models.Mode
}

func NewModeStore() *ModeStore {
	s := &ModeStore{}
	for i := range s.shards {
		s.shards[i].modes = make(map[int64]models.Mode)
	}
	return s
}

func (s *ModeStore) shard(chatID int64) *modeShard {
	idx := chatID % modeShards
	if idx < 0 {
		idx += modeShards
	}
	return &s.shards[idx]
}

// Get returns the mode for a chat, defaulting to text for unseen chats.
func (s *ModeStore) Get(chatID int64) models.Mode {
	sh := s.shard(chatID)
	sh.mu.RLock()
	mode, ok := sh.modes[chatID]
	sh.mu.RUnlock()
	if !ok {
		return models.ModeText
	}
	return mode
}

func (s *ModeStore) Set(chatID int64, mode models.Mode) {
	sh := s.shard(chatID)
	sh.mu.Lock()
	sh.modes[chatID] = mode
	sh.mu.Unlock()
}

// Toggle flips the chat between text and image mode and returns the new
// mode. The read-modify-write happens under the shard write lock, so
// concurrent toggles of the same chat serialize and none are lost.
func (s *ModeStore) Toggle(chatID int64) models.Mode {
	sh := s.shard(chatID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	mode, ok := sh.modes[chatID]
	if !ok {
		mode = models.ModeText
	}
	next := mode.Toggled()
	sh.modes[chatID] = next
	return next
}
