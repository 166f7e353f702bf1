package calibration

import "github.com/couchcryptid/field-readiness-service/internal/domain"

// DefaultHysteresis is the band, in readiness points, around an operation
// threshold inside which a field is neither ready nor not ready.
const DefaultHysteresis = 2

// Status is a field's classification against an operation threshold.
type Status string

const (
	StatusReady      Status = "ready"
	StatusNotReady   Status = "not_ready"
	StatusBorderline Status = "borderline"
)

// Reason explains why a calibration request was not applied.
type Reason string

const (
	ReasonLocked          Reason = "locked"
	ReasonUnknownField    Reason = "unknown_field"
	ReasonNoFields        Reason = "no_fields"
	ReasonInvalidRequest  Reason = "invalid_request"
	ReasonSameDirection   Reason = "same_direction"
	ReasonBorderline      Reason = "borderline"
	ReasonTargetDirection Reason = "target_direction"
)

// Classify places readiness relative to threshold with a symmetric band.
func Classify(readiness, threshold, band int) Status {
	if band < 0 {
		band = 0
	}
	switch {
	case readiness >= threshold+band:
		return StatusReady
	case readiness <= threshold-band:
		return StatusNotReady
	default:
		return StatusBorderline
	}
}

// Allowed reports whether feel contradicts status. An operator who finds the
// field wet may only correct a field the model calls ready, and vice versa.
func Allowed(status Status, feel domain.Feel) bool {
	switch feel {
	case domain.FeelWet:
		return status == StatusReady
	case domain.FeelDry:
		return status == StatusNotReady
	default:
		return false
	}
}

// guard returns the rejection reason for a feel against a classified anchor
// and the requested target, or "" when the request may proceed.
func guard(status Status, feel domain.Feel, anchor, target int) Reason {
	if !Allowed(status, feel) {
		if status == StatusBorderline {
			return ReasonBorderline
		}
		return ReasonSameDirection
	}
	switch feel {
	case domain.FeelWet:
		if target >= anchor {
			return ReasonTargetDirection
		}
	case domain.FeelDry:
		if target <= anchor {
			return ReasonTargetDirection
		}
	}
	return ""
}
