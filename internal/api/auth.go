package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/swiftbook-app/swiftbook/internal/database"
	"github.com/swiftbook-app/swiftbook/internal/identity"
	"github.com/swiftbook-app/swiftbook/internal/types"
	"golang.org/x/crypto/bcrypt"
)

var (
	defaultTokenTTL = time.Hour * 24
	tokenCookieKey  = "token"
)

type SignupRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	BusinessId   string `json:"business_id" validate:"omitempty,max=64"`
	BusinessName string `json:"business_name" validate:"omitempty,max=120"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

func (s *SwiftBookApp) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if errResp := decodeRequest(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	req.BusinessId = strings.TrimSpace(req.BusinessId)
	req.BusinessName = strings.TrimSpace(req.BusinessName)

	// a new business needs a name; joining an existing one only needs its id
	if req.BusinessId == "" {
		if req.BusinessName == "" {
			errResp := NewBadRequestError()
			errResp.Message = "business_name is required when business_id is omitted"
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		sid, err := s.generateShortId()
		if err != nil {
			s.log.Errorf("generateShortId: %v", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		req.BusinessId = sid
	}

	tenantName := req.BusinessName
	if tenantName == "" {
		tenantName = req.BusinessId
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.RegisterPrincipal(r.Context(), database.RegisterParams{
		TenantId:     req.BusinessId,
		TenantName:   tenantName,
		Name:         req.Name,
		EmailAddress: strings.ToLower(req.Email),
		PasswordHash: pwdHash,
	})
	if err != nil {
		s.log.Errorf("register principal: %v", err)
		errResp := errorFromDomain(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.log.WithField("tenant_id", dbUser.TenantId).Infof("registered %s as %s", dbUser.Id, dbUser.Role)
	s.issueSession(w, http.StatusCreated, dbUser)
}

func (s *SwiftBookApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if errResp := decodeRequest(r, &lr); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetUserByEmail(r.Context(), strings.ToLower(lr.Email))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, types.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.issueSession(w, http.StatusOK, dbUser)
}

// issueSession signs a credential for u, sets it as the session cookie and
// writes it in the body for clients that send bearer headers.
func (s *SwiftBookApp) issueSession(w http.ResponseWriter, code int, u database.User) {
	token, err := s.auth.Issue(identity.Identity{
		UserId:   u.Id,
		TenantId: u.TenantId,
		Role:     u.Role,
	}, s.tokenTTL)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, s.tokenTTL))

	s.writeJson(w, code, AuthResponse{
		Token: token,
		User:  toUser(u),
	})
}

func (s *SwiftBookApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	c := createJwtCookie("", 0)
	c.Expires = time.Unix(0, 0)
	c.MaxAge = -1
	http.SetCookie(w, c)
	w.WriteHeader(http.StatusNoContent)
}

func (s *SwiftBookApp) session(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserById(r.Context(), id.UserId)
	if err != nil {
		errResp := errorFromDomain(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toUser(user))
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
