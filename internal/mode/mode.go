// Package mode derives which signal source governs a subscriber's light state.
// The stored mode field is a display/write-suppression cache only — every
// decision recomputes it from the raw record fields.
package mode

import (
	"context"
	"log"
	"time"

	"lights-watch/internal/models"
	"lights-watch/internal/ttlmap"
)

// writeDebounce suppresses redundant mode writes when concurrent evaluations
// race over the same subscriber.
const writeDebounce = 2 * time.Second

// Classify is a pure function of (has_address, has_liveness).
func Classify(s *models.Subscriber) models.Mode {
	switch {
	case s.HasAddress() && s.HasLiveness():
		return models.ModeFull
	case s.HasLiveness():
		return models.ModePing
	case s.HasAddress():
		return models.ModeOutage
	default:
		return models.ModeNone
	}
}

// Writer persists the cached mode classification.
type Writer interface {
	SetMode(ctx context.Context, chatID int64, mode models.Mode) error
}

// Ensurer recomputes modes and persists them only when they actually changed.
type Ensurer struct {
	writer   Writer
	debounce *ttlmap.Map[int64, struct{}]
}

func NewEnsurer(w Writer) *Ensurer {
	return &Ensurer{
		writer:   w,
		debounce: ttlmap.New[int64, struct{}](writeDebounce),
	}
}

// Ensure returns the freshly computed mode and, if it differs from the stored
// one, persists it — at most once per debounce window per subscriber. The
// record's Mode field is updated in place so later steps in the same pass see
// the new value.
func (e *Ensurer) Ensure(ctx context.Context, s *models.Subscriber) models.Mode {
	computed := Classify(s)
	if computed == s.Mode {
		return computed
	}
	if !e.debounce.Allow(s.ChatID) {
		return computed
	}
	if err := e.writer.SetMode(ctx, s.ChatID, computed); err != nil {
		log.Printf("[mode] failed to persist mode %q for chat %d: %v", computed, s.ChatID, err)
	}
	s.Mode = computed
	return computed
}
