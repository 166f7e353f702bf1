package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/couchcryptid/field-readiness-service/internal/calibration"
	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/fleet"
	"github.com/couchcryptid/field-readiness-service/internal/readiness"
)

const maxBodyBytes = 1 << 20

// ReadinessService answers per-field readiness queries.
type ReadinessService interface {
	Fields(ctx context.Context) ([]domain.Field, error)
	Readiness(ctx context.Context, fieldID string) (fleet.FieldRun, error)
	ETA(ctx context.Context, fieldID string, op domain.OpKey) (fleet.ETAResult, error)
}

// CalibrationService applies and reports global calibrations.
type CalibrationService interface {
	ApplyAdjustment(ctx context.Context, req calibration.Request) (calibration.Result, error)
	RebuildTruth(ctx context.Context, windowDays int, actor string) (calibration.RebuildResult, error)
	Status(ctx context.Context) (calibration.LockStatus, error)
	History(ctx context.Context) ([]domain.CalibrationAdjustment, error)
}

// API bundles the services behind the /api routes.
type API struct {
	Readiness         ReadinessService
	Calibration       CalibrationService
	Auth              *Authenticator
	RebuildWindowDays int
}

type readinessResponse struct {
	FieldID      string               `json:"field_id"`
	Name         string               `json:"name,omitempty"`
	Readiness    int                  `json:"readiness"`
	Wetness      int                  `json:"wetness"`
	StorageFinal float64              `json:"storage_final"`
	Smax         float64              `json:"smax"`
	AsOfDate     string               `json:"as_of_date,omitempty"`
	SeedSource   readiness.SeedSource `json:"seed_source"`
	Degraded     bool                 `json:"degraded,omitempty"`
	Trace        []readiness.DayTrace `json:"trace,omitempty"`
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	fields, err := s.api.Readiness.Fields(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if fields == nil {
		fields = []domain.Field{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	fr, err := s.api.Readiness.Readiness(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := readinessResponse{
		FieldID:      fr.Field.ID,
		Name:         fr.Field.Name,
		Readiness:    fr.Run.ReadinessR,
		Wetness:      fr.Run.WetnessR,
		StorageFinal: fr.Run.StorageFinal,
		Smax:         fr.Run.Factors.Smax,
		AsOfDate:     fr.Run.AsOfDate,
		SeedSource:   fr.Run.SeedSource,
		Degraded:     fr.Degraded,
	}
	if r.URL.Query().Get("trace") == "1" {
		resp.Trace = fr.Run.Trace
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleETA(w http.ResponseWriter, r *http.Request) {
	op := domain.OpKey(r.URL.Query().Get("op"))
	if op == "" {
		op = domain.OpSpringTillage
	}
	if !op.Valid() {
		writeError(w, http.StatusBadRequest, "unknown operation")
		return
	}
	res, err := s.api.Readiness.ETA(r.Context(), r.PathValue("id"), op)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCalibrationStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.api.Calibration.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCalibrationHistory(w http.ResponseWriter, r *http.Request) {
	adjs, err := s.api.Calibration.History(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if adjs == nil {
		adjs = []domain.CalibrationAdjustment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"adjustments": adjs})
}

func (s *Server) handleApplyCalibration(w http.ResponseWriter, r *http.Request) {
	var req calibration.Request
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Actor = ActorFrom(r.Context())

	res, err := s.api.Calibration.ApplyAdjustment(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, calibrationStatus(res), res)
}

type rebuildRequest struct {
	WindowDays int `json:"window_days"`
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WindowDays < 0 {
		writeError(w, http.StatusBadRequest, "window_days must not be negative")
		return
	}
	if req.WindowDays == 0 {
		req.WindowDays = s.api.RebuildWindowDays
	}

	res, err := s.api.Calibration.RebuildTruth(r.Context(), req.WindowDays, ActorFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// calibrationStatus maps a calibration outcome to an HTTP status. Rejections
// carry the full result body so clients can show the reason.
func calibrationStatus(res calibration.Result) int {
	if res.Applied {
		return http.StatusOK
	}
	switch res.Reason {
	case calibration.ReasonInvalidRequest:
		return http.StatusBadRequest
	case calibration.ReasonUnknownField:
		return http.StatusNotFound
	case calibration.ReasonLocked:
		return http.StatusTooManyRequests
	default:
		return http.StatusConflict
	}
}

// writeServiceError maps domain errors to coarse client messages. Anything
// unexpected is logged and reported as an internal error.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "edit permission required")
	case errors.Is(err, calibration.ErrNoFields):
		writeError(w, http.StatusConflict, "no fields loaded")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
