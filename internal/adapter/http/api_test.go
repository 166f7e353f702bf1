package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/field-readiness-service/internal/adapter/http"
	"github.com/couchcryptid/field-readiness-service/internal/calibration"
	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/fleet"
	"github.com/couchcryptid/field-readiness-service/internal/readiness"
)

// --- mocks ---

type mockFleet struct {
	fields []domain.Field
	err    error
	gotOp  domain.OpKey
}

func (m *mockFleet) Fields(context.Context) ([]domain.Field, error) { return m.fields, m.err }

func (m *mockFleet) Readiness(_ context.Context, id string) (fleet.FieldRun, error) {
	if m.err != nil {
		return fleet.FieldRun{}, m.err
	}
	for _, f := range m.fields {
		if f.ID == id {
			fr := fleet.FieldRun{Field: f}
			fr.Run.ReadinessR = 62
			fr.Run.WetnessR = 38
			fr.Run.StorageFinal = 1.52
			fr.Run.Factors.Smax = 4
			fr.Run.SeedSource = readiness.SeedTruth
			fr.Run.Trace = []readiness.DayTrace{{Date: "2025-04-09", Readiness: 62}}
			return fr, nil
		}
	}
	return fleet.FieldRun{}, domain.ErrNotFound
}

func (m *mockFleet) ETA(_ context.Context, id string, op domain.OpKey) (fleet.ETAResult, error) {
	m.gotOp = op
	if m.err != nil {
		return fleet.ETAResult{}, m.err
	}
	return fleet.ETAResult{FieldID: id, OpKey: op, ETA: readiness.ETA{Status: readiness.ETAWithinHorizon, Hours: 30, Threshold: 70}}, nil
}

type mockCalibration struct {
	result     calibration.Result
	err        error
	gotReq     calibration.Request
	gotWindow  int
	gotActor   string
	gate       domain.PermissionGate
	history    []domain.CalibrationAdjustment
	lockStatus calibration.LockStatus
}

func (m *mockCalibration) ApplyAdjustment(ctx context.Context, req calibration.Request) (calibration.Result, error) {
	if m.gate != nil && !m.gate.CanEdit(ctx) {
		return calibration.Result{}, domain.ErrForbidden
	}
	m.gotReq = req
	return m.result, m.err
}

func (m *mockCalibration) RebuildTruth(ctx context.Context, windowDays int, actor string) (calibration.RebuildResult, error) {
	if m.gate != nil && !m.gate.CanEdit(ctx) {
		return calibration.RebuildResult{}, domain.ErrForbidden
	}
	m.gotWindow, m.gotActor = windowDays, actor
	return calibration.RebuildResult{WindowDays: windowDays, FieldsUpdated: 2}, m.err
}

func (m *mockCalibration) Status(context.Context) (calibration.LockStatus, error) {
	return m.lockStatus, m.err
}

func (m *mockCalibration) History(context.Context) ([]domain.CalibrationAdjustment, error) {
	return m.history, m.err
}

// --- helpers ---

type apiHarness struct {
	srv   *httpadapter.Server
	fleet *mockFleet
	cal   *mockCalibration
	auth  *httpadapter.Authenticator
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()
	auth := httpadapter.NewAuthenticator(testSecret, false)
	h := &apiHarness{
		fleet: &mockFleet{fields: []domain.Field{{ID: "north-40", Name: "North 40", SoilWetness: 50, DrainageIndex: 50}}},
		cal:   &mockCalibration{gate: auth},
		auth:  auth,
	}
	h.srv = httpadapter.NewServer(":0", &mockReadiness{}, httpadapter.API{
		Readiness:         h.fleet,
		Calibration:       h.cal,
		Auth:              auth,
		RebuildWindowDays: 21,
	}, slog.Default())
	return h
}

func (h *apiHarness) do(t *testing.T, method, path, body, role string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if role != "" {
		token, err := h.auth.Issue("tester", httpadapter.Role(role), time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// --- tests ---

func TestAPI_ListFields(t *testing.T) {
	h := newAPI(t)
	rec := h.do(t, http.MethodGet, "/api/fields", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	fields := decode(t, rec)["fields"].([]any)
	require.Len(t, fields, 1)
	assert.Equal(t, "north-40", fields[0].(map[string]any)["id"])
}

func TestAPI_ListFields_EmptyIsArray(t *testing.T) {
	h := newAPI(t)
	h.fleet.fields = nil
	rec := h.do(t, http.MethodGet, "/api/fields", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"fields":[]}`, rec.Body.String())
}

func TestAPI_Readiness(t *testing.T) {
	h := newAPI(t)

	rec := h.do(t, http.MethodGet, "/api/fields/north-40/readiness", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.InDelta(t, 62, body["readiness"], 1e-9)
	assert.InDelta(t, 38, body["wetness"], 1e-9)
	assert.Equal(t, "truth", body["seed_source"])
	assert.NotContains(t, body, "trace")

	rec = h.do(t, http.MethodGet, "/api/fields/north-40/readiness?trace=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["trace"], 1)
}

func TestAPI_Readiness_UnknownField(t *testing.T) {
	h := newAPI(t)
	rec := h.do(t, http.MethodGet, "/api/fields/nope/readiness", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Readiness_InternalErrorIsCoarse(t *testing.T) {
	h := newAPI(t)
	h.fleet.err = errors.New("sqlite: database is locked")
	rec := h.do(t, http.MethodGet, "/api/fields/north-40/readiness", "", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sqlite")
}

func TestAPI_ETA(t *testing.T) {
	h := newAPI(t)

	rec := h.do(t, http.MethodGet, "/api/fields/north-40/eta?op=planting", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OpPlanting, h.fleet.gotOp)
	eta := decode(t, rec)["eta"].(map[string]any)
	assert.Equal(t, "within_horizon", eta["status"])

	rec = h.do(t, http.MethodGet, "/api/fields/north-40/eta", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OpSpringTillage, h.fleet.gotOp)

	rec = h.do(t, http.MethodGet, "/api/fields/north-40/eta?op=mowing", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ApplyCalibration(t *testing.T) {
	h := newAPI(t)
	h.cal.result = calibration.Result{Applied: true, Anchor: 55, Threshold: 60}

	rec := h.do(t, http.MethodPost, "/api/calibration",
		`{"ref_field_id":"north-40","target_readiness":75,"feel":"dry","op_key":"spraying"}`, "editor")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["applied"])
	assert.Equal(t, calibration.Request{
		RefFieldID:      "north-40",
		TargetReadiness: 75,
		Feel:            domain.FeelDry,
		OpKey:           domain.OpSpraying,
		Actor:           "tester",
	}, h.cal.gotReq)
}

func TestAPI_ApplyCalibration_Permissions(t *testing.T) {
	h := newAPI(t)
	body := `{"ref_field_id":"north-40","target_readiness":75,"feel":"dry"}`

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/calibration", body, "").Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/calibration", body, "viewer").Code)
}

func TestAPI_ApplyCalibration_Rejections(t *testing.T) {
	cases := []struct {
		reason calibration.Reason
		want   int
	}{
		{calibration.ReasonInvalidRequest, http.StatusBadRequest},
		{calibration.ReasonUnknownField, http.StatusNotFound},
		{calibration.ReasonLocked, http.StatusTooManyRequests},
		{calibration.ReasonSameDirection, http.StatusConflict},
		{calibration.ReasonBorderline, http.StatusConflict},
		{calibration.ReasonNoFields, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(string(tc.reason), func(t *testing.T) {
			h := newAPI(t)
			h.cal.result = calibration.Result{Reason: tc.reason}
			rec := h.do(t, http.MethodPost, "/api/calibration",
				`{"ref_field_id":"north-40","target_readiness":75,"feel":"dry"}`, "editor")

			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, string(tc.reason), decode(t, rec)["reason"])
		})
	}
}

func TestAPI_ApplyCalibration_BadBody(t *testing.T) {
	h := newAPI(t)
	for _, body := range []string{`{`, `{"ref_field_id":"a","extra":1}`, ``} {
		rec := h.do(t, http.MethodPost, "/api/calibration", body, "editor")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestAPI_Rebuild(t *testing.T) {
	h := newAPI(t)

	rec := h.do(t, http.MethodPost, "/api/truth/rebuild", "", "editor")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 21, h.cal.gotWindow, "configured default window")
	assert.Equal(t, "tester", h.cal.gotActor)

	rec = h.do(t, http.MethodPost, "/api/truth/rebuild", `{"window_days":14}`, "editor")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 14, h.cal.gotWindow)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/truth/rebuild", `{"window_days":-1}`, "editor").Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/truth/rebuild", "", "viewer").Code)
}

func TestAPI_Rebuild_NoFields(t *testing.T) {
	h := newAPI(t)
	h.cal.err = calibration.ErrNoFields
	rec := h.do(t, http.MethodPost, "/api/truth/rebuild", "", "editor")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_CalibrationStatusAndHistory(t *testing.T) {
	h := newAPI(t)
	next := time.Date(2025, 4, 13, 12, 0, 0, 0, time.UTC)
	h.cal.lockStatus = calibration.LockStatus{
		CooldownState: domain.CooldownState{NextAllowed: next, CooldownHours: 72},
		Locked:        true,
		Tuning:        domain.DefaultTuning(),
	}
	h.cal.history = []domain.CalibrationAdjustment{{ID: "adj-1", Feel: domain.FeelWet}}

	rec := h.do(t, http.MethodGet, "/api/calibration/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)
	assert.Equal(t, true, status["locked"])
	assert.Equal(t, "2025-04-13T12:00:00Z", status["next_allowed"])

	rec = h.do(t, http.MethodGet, "/api/calibration/history", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	adjs := decode(t, rec)["adjustments"].([]any)
	require.Len(t, adjs, 1)
	assert.Equal(t, "adj-1", adjs[0].(map[string]any)["id"])
}

func TestAPI_InvalidTokenRejected(t *testing.T) {
	h := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/fields", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
