package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/swiftbook-app/swiftbook/internal/database"
	"github.com/swiftbook-app/swiftbook/internal/identity"
	"github.com/swiftbook-app/swiftbook/internal/testutil"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	app := &SwiftBookApp{
		log: testutil.TestLogger(t),
	}

	app.log.SetOutput(buf)

	// handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Contains(t, buf.String(), "panic: test panic")
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &SwiftBookApp{}

	// simple handler that does not panic
	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func Test_credential(t *testing.T) {
	tcases := []struct {
		name     string
		path     string
		header   string
		cookie   string
		expected string
	}{
		{
			name:     "bearer header",
			path:     "/api/session",
			header:   "Bearer abc",
			expected: "abc",
		},
		{
			name:     "header wins over cookie",
			path:     "/api/session",
			header:   "Bearer abc",
			cookie:   "def",
			expected: "abc",
		},
		{
			name:     "cookie",
			path:     "/api/session",
			cookie:   "def",
			expected: "def",
		},
		{
			name:     "non bearer header falls back to cookie",
			path:     "/api/session",
			header:   "Basic Zm9vOmJhcg==",
			cookie:   "def",
			expected: "def",
		},
		{
			name:     "query token on websocket",
			path:     "/ws?token=ghi",
			expected: "ghi",
		},
		{
			name:     "query token ignored on api",
			path:     "/api/session?token=ghi",
			expected: "",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: tc.cookie})
			}

			assert.Equal(t, tc.expected, credential(req))
		})
	}
}

func Test_authMiddleware(t *testing.T) {
	app, _ := newTestApp(t)

	var seen identity.Identity
	next := func(w http.ResponseWriter, r *http.Request) {
		seen, _ = identity.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}

	t.Run("valid token", func(t *testing.T) {
		id := identity.Identity{UserId: "u1", TenantId: "acme", Role: types.RoleManager}
		token, err := app.auth.Issue(id, time.Hour)
		assert.NoError(t, err)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: token})

		app.authMiddleware(next)(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, id, seen)
		assert.Equal(t, "no-store, no-cache, must-revalidate, private", rr.Header().Get("Cache-Control"))
	})

	t.Run("missing token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)

		app.authMiddleware(next)(rr, req)

		var apiErr ApiError
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&apiErr))
		assert.Equal(t, *NewUnauthorizedError(), apiErr)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		token, err := identity.NewAuthenticator([]byte("other-key")).Issue(
			identity.Identity{UserId: "u1", TenantId: "acme", Role: types.RoleOwner}, time.Hour)
		assert.NoError(t, err)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		app.authMiddleware(next)(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func Test_requireRole(t *testing.T) {
	tcases := []struct {
		name         string
		tokenRole    types.Role
		currentRole  types.Role
		lookupErr    error
		expectedCode int
	}{
		{name: "owner allowed", tokenRole: types.RoleOwner, currentRole: types.RoleOwner, expectedCode: http.StatusOK},
		{name: "admin allowed", tokenRole: types.RoleAdmin, currentRole: types.RoleAdmin, expectedCode: http.StatusOK},
		{name: "manager rejected", tokenRole: types.RoleManager, currentRole: types.RoleManager, expectedCode: http.StatusForbidden},
		{name: "employee rejected", tokenRole: types.RoleEmployee, currentRole: types.RoleEmployee, expectedCode: http.StatusForbidden},
		{name: "demoted since issue", tokenRole: types.RoleAdmin, currentRole: types.RoleEmployee, expectedCode: http.StatusForbidden},
		{name: "promoted since issue", tokenRole: types.RoleEmployee, currentRole: types.RoleAdmin, expectedCode: http.StatusOK},
		{name: "principal removed", tokenRole: types.RoleAdmin, lookupErr: types.ErrNotFound, expectedCode: http.StatusUnauthorized},
		{name: "lookup failure", tokenRole: types.RoleAdmin, lookupErr: errors.New("connection reset"), expectedCode: http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app, db := newTestApp(t)
			defer db.AssertExpectations(t)

			db.On("GetUserInTenant", "acme", "u1").
				Return(database.User{Id: "u1", TenantId: "acme", Role: tc.currentRole}, tc.lookupErr).
				Once()

			handler := app.requireRole(func(w http.ResponseWriter, r *http.Request) {
				id, ok := identity.FromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, tc.currentRole, id.Role, "expected handler to see the current role")
				w.WriteHeader(http.StatusOK)
			}, types.RoleOwner, types.RoleAdmin)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(identity.WithIdentity(req.Context(), identity.Identity{
				UserId:   "u1",
				TenantId: "acme",
				Role:     tc.tokenRole,
			}))

			handler(rr, req)
			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}

	t.Run("no identity", func(t *testing.T) {
		app, db := newTestApp(t)
		handler := app.requireRole(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		}, types.RoleOwner)

		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		db.AssertNotCalled(t, "GetUserInTenant", mock.Anything, mock.Anything)
	})
}
