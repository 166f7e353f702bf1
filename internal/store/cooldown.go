package store

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

const cooldownKey = "cooldown"

// Cooldown implements domain.CooldownLock as a single time-based document.
type Cooldown struct {
	backend Backend
	hours   float64
}

// NewCooldown creates a calibration lock over backend. Non-positive hours
// use domain.DefaultCooldownHours.
func NewCooldown(backend Backend, hours float64) *Cooldown {
	if hours <= 0 {
		hours = domain.DefaultCooldownHours
	}
	return &Cooldown{backend: backend, hours: hours}
}

// Get returns the lock state. A missing document means unlocked.
func (s *Cooldown) Get(ctx context.Context) (domain.CooldownState, error) {
	var st domain.CooldownState
	err := getJSON(ctx, s.backend, CollectionCalibration, cooldownKey, &st)
	switch {
	case errors.Is(err, domain.ErrNotFound), err != nil && isDecodeError(err):
		return domain.CooldownState{CooldownHours: s.hours}, nil
	case err != nil:
		return domain.CooldownState{}, err
	}
	if st.CooldownHours <= 0 {
		st.CooldownHours = s.hours
	}
	return st, nil
}

// Set records a calibration at now and locks until now + the cooldown window.
func (s *Cooldown) Set(ctx context.Context, now time.Time) error {
	window := time.Duration(s.hours * float64(time.Hour))
	return putJSON(ctx, s.backend, CollectionCalibration, cooldownKey, domain.CooldownState{
		LastApplied:   now.UTC(),
		NextAllowed:   now.UTC().Add(window),
		CooldownHours: s.hours,
	})
}
