// Package memory keeps a bounded window of recent turns per (user, character)
// session.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/server/conversation"
	"go.uber.org/zap"
)

// Store is session memory. Implementations serialize mutation per key.
type Store interface {
	// Get returns an ordered copy of the session's turns, creating an empty
	// session when none exists.
	Get(ctx context.Context, user, character string) ([]conversation.Turn, error)

	// Append adds turns, evicting the oldest once the window is full.
	Append(ctx context.Context, user, character string, turns ...conversation.Turn) error

	// Clear drops the session. It reports false for a key that was never
	// created; that is not an error.
	Clear(ctx context.Context, user, character string) (bool, error)

	Stats(ctx context.Context) (Stats, error)
	Len(ctx context.Context) (int, error)

	// Sweep drops sessions not touched for longer than idle and returns how
	// many were removed.
	Sweep(ctx context.Context, idle time.Duration) (int, error)

	Close() error
}

// Stats describes the sessions currently held.
type Stats struct {
	TotalSessions int                     `json:"total_sessions"`
	Sessions      map[string]SessionStats `json:"sessions"`
}

// SessionStats describes one session. WindowSize is counted in exchanges.
type SessionStats struct {
	MessageCount int `json:"message_count"`
	WindowSize   int `json:"window_size"`
}

// Key is the session key for a user and character.
func Key(user, character string) string {
	return user + ":" + character
}

// New builds the store selected by cfg.
func New(cfg config.MemoryConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewWindowStore(cfg.Window), nil
	case "redis":
		return NewRedisStore(cfg.Redis, cfg.Window, logger)
	default:
		return nil, fmt.Errorf("unknown memory backend: %s", cfg.Backend)
	}
}
