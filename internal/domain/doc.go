// Package domain holds the field-readiness data model and the contracts of
// the document stores the core reads and writes.
//
// # Units
//
// Storage and rain are inches of water. Temperature is °F, wind mph, relative
// humidity percent, solar radiation mean W/m², vapour pressure deficit kPa,
// cloud cover percent, shallow soil moisture m³/m³, reference
// evapotranspiration (ET0) inches per day.
//
// # Readiness
//
// Readiness is an integer 0–100 where 100 means the field is most ready for
// an operation. Wetness is its complement (100 − readiness). The simulated
// physical quantity is storage relative to a per-field capacity Smax in
// [3, 5] inches; readiness is derived from it once per query.
//
// # Truth state
//
// Each field carries one persisted StorageState, the seed of the next
// simulation window. It is written by the daily roll-forward, replaced by a
// global calibration, or recomputed by a baseline rebuild. It is never
// deleted. Writes always carry the full value so they are idempotent and safe
// to retry one field at a time.
//
// # Dates
//
// Weather rows and truth state use ISO calendar dates (YYYY-MM-DD). Lexical
// order of these strings is chronological order.
package domain
