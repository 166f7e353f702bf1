package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/field-readiness-service/internal/adapter/http"
)

const testSecret = "test-secret"

func TestAuthenticator_IssueAndVerify(t *testing.T) {
	a := httpadapter.NewAuthenticator(testSecret, false)
	token, err := a.Issue("agronomist@farm", httpadapter.RoleEditor, time.Hour)
	require.NoError(t, err)

	p, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "agronomist@farm", p.Subject)
	assert.Equal(t, httpadapter.RoleEditor, p.Role)
}

func TestAuthenticator_RejectsBadTokens(t *testing.T) {
	a := httpadapter.NewAuthenticator(testSecret, false)
	other := httpadapter.NewAuthenticator("another-secret", false)

	wrongKey, err := other.Issue("x", httpadapter.RoleEditor, time.Hour)
	require.NoError(t, err)
	expired, err := a.Issue("x", httpadapter.RoleEditor, -time.Minute)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, httpadapter.Claims{
		Role:             httpadapter.RoleEditor,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	noSubject, err := a.Issue("", httpadapter.RoleEditor, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":    "not.a.token",
		"wrong key":  wrongKey,
		"expired":    expired,
		"no expiry":  noExpiry,
		"no subject": noSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Verify(token)
			assert.Error(t, err)
		})
	}
}

func TestAuthenticator_Middleware(t *testing.T) {
	a := httpadapter.NewAuthenticator(testSecret, false)
	editor, err := a.Issue("ed", httpadapter.RoleEditor, time.Hour)
	require.NoError(t, err)
	viewer, err := a.Issue("vi", httpadapter.RoleViewer, time.Hour)
	require.NoError(t, err)

	var canEdit bool
	var actor string
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		canEdit = a.CanEdit(r.Context())
		actor = httpadapter.ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name     string
		header   string
		wantCode int
		wantEdit bool
		wantWho  string
	}{
		{"anonymous", "", http.StatusNoContent, false, ""},
		{"viewer", "Bearer " + viewer, http.StatusNoContent, false, "vi"},
		{"editor", "bearer " + editor, http.StatusNoContent, true, "ed"},
		{"invalid", "Bearer nope", http.StatusUnauthorized, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			canEdit, actor = false, ""
			req := httptest.NewRequest(http.MethodGet, "/api/fields", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantEdit, canEdit)
			assert.Equal(t, tc.wantWho, actor)
		})
	}
}

func TestAuthenticator_Disabled(t *testing.T) {
	a := httpadapter.NewAuthenticator("", true)
	assert.True(t, a.CanEdit(context.Background()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
