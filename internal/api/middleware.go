package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/swiftbook-app/swiftbook/internal/identity"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

func (s *SwiftBookApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
				}).Errorf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// credential finds the bearer token of a request. Browsers cannot set
// headers on a websocket handshake, so /ws also accepts a token query
// parameter.
func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if c, err := r.Cookie(tokenCookieKey); err == nil && c.Value != "" {
		return c.Value
	}

	if r.URL.Path == "/ws" {
		return r.URL.Query().Get("token")
	}

	return ""
}

func (s *SwiftBookApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.auth.Authenticate(credential(r))
		if err != nil {
			s.log.Debugf("authenticate: %v", err)
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := identity.WithIdentity(r.Context(), id)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}

// requireRole rejects callers whose current role is not one of roles. The
// role is re-read from the repository so a demotion takes effect before the
// credential expires.
func (s *SwiftBookApp) requireRole(next http.HandlerFunc, roles ...types.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity.FromContext(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		id, errResp := s.currentPrincipal(r, id)
		if errResp != nil {
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if !id.Role.In(roles...) {
			s.log.WithFields(logrus.Fields{
				"user_id": id.UserId,
				"role":    id.Role,
				"path":    r.URL.Path,
			}).Info("role not permitted")
			errResp := NewForbiddenError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		next(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
	}
}

// currentPrincipal refreshes id from the repository. A principal that no
// longer exists is unauthenticated.
func (s *SwiftBookApp) currentPrincipal(r *http.Request, id identity.Identity) (identity.Identity, *ApiError) {
	user, err := s.db.GetUserInTenant(r.Context(), id.TenantId, id.UserId)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return id, NewUnauthorizedError()
		}
		return id, NewInternalServerError(err)
	}

	id.Role = user.Role
	return id, nil
}
