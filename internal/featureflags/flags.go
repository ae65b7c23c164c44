// Package featureflags provides runtime switches that operators can flip
// without a redeploy.
package featureflags

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Well-known switch keys. Every switch defaults to off.
const (
	// FlagDisableRealtimePush keeps notifications persisted but skips live delivery.
	FlagDisableRealtimePush = "disable_realtime_push"

	// FlagDisablePhotoStorage drops incoming photos; reports are stored with a null photo.
	FlagDisablePhotoStorage = "disable_photo_storage"

	// FlagDisableEventPublishing stops report and notification events from reaching the broker.
	FlagDisableEventPublishing = "disable_event_publishing"
)

var knownKeys = []string{
	FlagDisableEventPublishing,
	FlagDisablePhotoStorage,
	FlagDisableRealtimePush,
}

// Known returns the switch keys the service understands, sorted.
func Known() []string {
	return append([]string(nil), knownKeys...)
}

// IsKnown reports whether key names a switch.
func IsKnown(key string) bool {
	for _, k := range knownKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Flag is the stored state of one switch.
type Flag struct {
	Key       string    `json:"key"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// FlagList is the response body of the admin endpoints.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate sets one switch.
type FlagUpdate struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// FlagUpdateRequest is an operator change, applied as a whole.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// Validate checks that every update targets a known switch exactly once.
func (r *FlagUpdateRequest) Validate() error {
	if len(r.Updates) == 0 {
		return errors.New("at least one update is required")
	}
	seen := make(map[string]bool, len(r.Updates))
	for _, u := range r.Updates {
		if !IsKnown(u.Key) {
			return fmt.Errorf("unknown feature flag %q", u.Key)
		}
		if seen[u.Key] {
			return fmt.Errorf("feature flag %q is updated twice", u.Key)
		}
		seen[u.Key] = true
	}
	return nil
}

// merge lays stored flags over the off-by-default set. Unknown stored keys
// are ignored.
func merge(stored []Flag) []Flag {
	byKey := make(map[string]Flag, len(knownKeys))
	for _, k := range knownKeys {
		byKey[k] = Flag{Key: k}
	}
	for _, f := range stored {
		if IsKnown(f.Key) {
			byKey[f.Key] = f
		}
	}

	out := make([]Flag, 0, len(byKey))
	for _, f := range byKey {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
