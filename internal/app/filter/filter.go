// Package filter provides the admission filters applied to tracks before they are queued.
package filter

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/osa030/musikbox/internal/domain/track"
)

// Rejection codes. They double as keys of the configurable messages.
const (
	CodeNotPlayable           = "not_playable"
	CodeDuplicateTrack        = "duplicate_track"
	CodeDurationLimitExceeded = "duration_limit_exceeded"
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "not_playable", "duplicate_track"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check decides whether t may join a queue that already holds admitted.
	Check(ctx context.Context, t track.Track, admitted []track.Track) Result
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Filter)
)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return lo.Assign(registry)
}

// Names returns the registered filter names in sorted order.
func Names() []string {
	names := lo.Keys(GetRegistered())
	slices.Sort(names)
	return names
}
