package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/swiftbook-app/swiftbook/internal/database"
	"github.com/swiftbook-app/swiftbook/internal/directory"
	"github.com/swiftbook-app/swiftbook/internal/identity"
	"github.com/swiftbook-app/swiftbook/internal/server"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

const maxHistoryLimit = 500

var validate = validator.New()

type CreateUserRequest struct {
	Name     string     `json:"name" validate:"required,max=120"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8,max=72"`
	Role     types.Role `json:"role" validate:"required,oneof=admin manager employee"`
}

type UpdateRoleRequest struct {
	Role types.Role `json:"role" validate:"required,oneof=admin manager employee"`
}

type ClientRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
	Notes string `json:"notes" validate:"max=4000"`
}

type TimeCardRequest struct {
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	HoursWorked float64 `json:"hours_worked" validate:"gt=0,lte=24"`
	Description string  `json:"description" validate:"max=2000"`
}

type ReviewTimeCardRequest struct {
	Status types.TimeCardStatus `json:"status" validate:"required,oneof=approved rejected"`
}

type UpdateProfileRequest struct {
	Name        string            `json:"name" validate:"required,max=120"`
	Phone       string            `json:"phone" validate:"omitempty,max=40"`
	Preferences types.Preferences `json:"preferences"`
}

type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"required,max=120"`
	MemberIds []string `json:"member_ids" validate:"required,min=1,dive,required"`
}

func (s *SwiftBookApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("json encode: %v", err)
	}
}

// decodeRequest reads a JSON body into v and validates its struct tags.
func decodeRequest(r *http.Request, v any) *ApiError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewBadRequestError()
	}

	if err := validate.Struct(v); err != nil {
		return NewValidationError(err)
	}

	return nil
}

func (s *SwiftBookApp) callerIdentity(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
	return id, ok
}

func (s *SwiftBookApp) writeDomainError(w http.ResponseWriter, op string, err error) {
	errResp := errorFromDomain(err)
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Errorf("%s: %v", op, err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func toUser(u database.User) types.User {
	return types.User{
		Id:           u.Id,
		Name:         u.Name,
		EmailAddress: u.EmailAddress,
		TenantId:     u.TenantId,
		Role:         u.Role,
		Phone:        u.Phone,
		Preferences:  types.Preferences(u.Preferences),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toClientRecord(c database.Client) types.ClientRecord {
	return types.ClientRecord{
		Id:        c.Id,
		TenantId:  c.TenantId,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toTimeCard(tc database.TimeCard) types.TimeCard {
	return types.TimeCard{
		Id:          tc.Id,
		TenantId:    tc.TenantId,
		UserId:      tc.UserId,
		Date:        tc.Date,
		HoursWorked: tc.HoursWorked,
		Description: tc.Description,
		Status:      tc.Status,
		ReviewedBy:  tc.ReviewedBy,
		CreatedAt:   tc.CreatedAt,
		UpdatedAt:   tc.UpdatedAt,
	}
}

func (s *SwiftBookApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Errorf("health check: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("UNAVAILABLE"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *SwiftBookApp) businessData(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	tenant, err := s.db.GetTenant(r.Context(), id.TenantId)
	if err != nil {
		s.writeDomainError(w, "get tenant", err)
		return
	}

	s.writeJson(w, http.StatusOK, types.Tenant{
		Id:        tenant.Id,
		Name:      tenant.Name,
		CreatedAt: tenant.CreatedAt,
	})
}

func (s *SwiftBookApp) hierarchy(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	dbUsers, err := s.db.ListUsers(r.Context(), id.TenantId)
	if err != nil {
		s.writeDomainError(w, "list users", err)
		return
	}

	users := lo.Map(dbUsers, func(u database.User, _ int) types.User {
		return toUser(u)
	})
	slices.SortStableFunc(users, func(a, b types.User) int {
		return b.Role.Rank() - a.Role.Rank()
	})

	s.writeJson(w, http.StatusOK, users)
}

func (s *SwiftBookApp) createUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if errResp := decodeRequest(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !id.Role.Outranks(req.Role) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.CreateUser(r.Context(), database.CreateUserParams{
		TenantId:     id.TenantId,
		Name:         req.Name,
		EmailAddress: strings.ToLower(req.Email),
		PasswordHash: pwdHash,
		Role:         req.Role,
	})
	if err != nil {
		s.writeDomainError(w, "create user", err)
		return
	}

	s.writeJson(w, http.StatusCreated, toUser(dbUser))
}

func (s *SwiftBookApp) updateUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	targetId := r.PathValue("userId")
	if targetId == "" || targetId == id.UserId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateRoleRequest
	if errResp := decodeRequest(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	target, err := s.db.GetUserInTenant(r.Context(), id.TenantId, targetId)
	if err != nil {
		s.writeDomainError(w, "get user", err)
		return
	}

	if !id.Role.Outranks(target.Role) || !id.Role.Outranks(req.Role) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	updated, err := s.db.UpdateUserRole(r.Context(), id.TenantId, targetId, req.Role)
	if err != nil {
		s.writeDomainError(w, "update role", err)
		return
	}

	s.writeJson(w, http.StatusOK, toUser(updated))
}

func (s *SwiftBookApp) listClients(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	dbClients, err := s.db.ListClients(r.Context(), id.TenantId)
	if err != nil {
		s.writeDomainError(w, "list clients", err)
		return
	}

	s.writeJson(w, http.StatusOK, lo.Map(dbClients, func(c database.Client, _ int) types.ClientRecord {
		return toClientRecord(c)
	}))
}

func (s *SwiftBookApp) createClient(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	var req ClientRequest
	if errResp := decodeRequest(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	c, err := s.db.CreateClient(r.Context(), database.ClientParams{
		TenantId: id.TenantId,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Notes:    req.Notes,
	})
	if err != nil {
		s.writeDomainError(w, "create client", err)
		return
	}

	s.writeJson(w, http.StatusCreated, toClientRecord(c))
}

func (s *SwiftBookApp) updateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	var req ClientRequest
	if errResp := decodeRequest(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	c, err := s.db.UpdateClient(r.Context(), database.ClientParams{
		Id:       r.PathValue("clientId"),
		TenantId: id.TenantId,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Notes:    req.Notes,
	})
	if err != nil {
		s.writeDomainError(w, "update client", err)
		return
	}

	s.writeJson(w, http.StatusOK, toClientRecord(c))
}

func (s *SwiftBookApp) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	if err := s.db.DeleteClient(r.Context(), id.TenantId, r.PathValue("clientId")); err != nil {
		s.writeDomainError(w, "delete client", err)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *SwiftBookApp) listTimeCards(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	// managers and above review the whole tenant
	userId := id.UserId
	if id.Role.Rank() >= types.RoleManager.Rank() {
		userId = ""
	}

	cards, err := s.db.ListTimeCards(r.Context(), id.TenantId, userId)
	if err != nil {
		s.writeDomainError(w, "list timecards", err)
		return
	}

	s.writeJson(w, http.StatusOK, lo.Map(cards, func(tc database.TimeCard, _ int) types.TimeCard {
		return toTimeCard(tc)
	}))
}

func (s *SwiftBookApp) createTimeCard(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	var req TimeCardRequest
	if errResp := decodeRequest(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	tc, err := s.db.CreateTimeCard(r.Context(), database.CreateTimeCardParams{
		TenantId:    id.TenantId,
		UserId:      id.UserId,
		Date:        req.Date,
		HoursWorked: req.HoursWorked,
		Description: req.Description,
	})
	if err != nil {
		s.writeDomainError(w, "create timecard", err)
		return
	}

	s.writeJson(w, http.StatusCreated, toTimeCard(tc))
}

func (s *SwiftBookApp) reviewTimeCard(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	var req ReviewTimeCardRequest
	if errResp := decodeRequest(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	tc, err := s.db.ReviewTimeCard(r.Context(), id.TenantId, r.PathValue("timecardId"), req.Status, id.UserId)
	if err != nil {
		s.writeDomainError(w, "review timecard", err)
		return
	}

	s.writeJson(w, http.StatusOK, toTimeCard(tc))
}

func (s *SwiftBookApp) profile(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
}

func (s *SwiftBookApp) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if errResp := decodeRequest(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	u, err := s.db.UpdateProfile(r.Context(), database.UpdateProfileParams{
		UserId:      id.UserId,
		Name:        req.Name,
		Phone:       req.Phone,
		Preferences: database.Preferences(req.Preferences),
	})
	if err != nil {
		s.writeDomainError(w, "update profile", err)
		return
	}

	s.writeJson(w, http.StatusOK, toUser(u))
}

// historyLimit reads the optional limit query parameter.
func historyLimit(r *http.Request) (int, *ApiError) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		return 0, NewBadRequestError()
	}

	return min(limit, maxHistoryLimit), nil
}

func (s *SwiftBookApp) writeHistory(w http.ResponseWriter, r *http.Request, tenantId string, sel database.RoomSelector) {
	limit, errResp := historyLimit(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	sel.Limit = limit

	msgs, err := s.db.QueryMessages(r.Context(), tenantId, sel)
	if err != nil {
		s.writeDomainError(w, "query messages", err)
		return
	}

	s.writeJson(w, http.StatusOK, lo.Map(msgs, func(m database.Message, _ int) types.Message {
		return server.ToMessage(m)
	}))
}

func (s *SwiftBookApp) businessMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	if r.PathValue("tenantId") != id.TenantId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeHistory(w, r, id.TenantId, database.BusinessSelector())
}

func (s *SwiftBookApp) directMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	peerId := r.PathValue("peerId")
	if _, err := s.db.GetUserInTenant(r.Context(), id.TenantId, peerId); err != nil {
		s.writeDomainError(w, "get peer", err)
		return
	}

	s.writeHistory(w, r, id.TenantId, database.DirectSelector(id.UserId, peerId))
}

func (s *SwiftBookApp) groupMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	g, err := s.groups.GetGroup(r.Context(), id.TenantId, r.PathValue("groupId"))
	if err != nil {
		s.writeDomainError(w, "get group", err)
		return
	}

	if !directory.IsMember(g, id.UserId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeHistory(w, r, id.TenantId, database.GroupSelector(g.Id))
}

func (s *SwiftBookApp) createGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if errResp := decodeRequest(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	g, err := s.groups.CreateGroup(r.Context(), id.TenantId, id.UserId, req.Name, req.MemberIds)
	if err != nil {
		s.writeDomainError(w, "create group", err)
		return
	}

	s.writeJson(w, http.StatusCreated, g)
}

func (s *SwiftBookApp) listGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	if r.PathValue("tenantId") != id.TenantId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	groups, err := s.groups.ListGroupsForMember(r.Context(), id.TenantId, id.UserId)
	if err != nil {
		s.writeDomainError(w, "list groups", err)
		return
	}

	s.writeJson(w, http.StatusOK, groups)
}

func (s *SwiftBookApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.callerIdentity(w, r)
	if !ok {
		return
	}

	// the credential may outlive the principal
	id, errResp := s.currentPrincipal(r, id)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("error upgrading connection: %v", err)
		return
	}

	client := server.NewClient(id, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
