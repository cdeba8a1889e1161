package database

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) RegisterPrincipal(ctx context.Context, params RegisterParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetTenant(ctx context.Context, tenantId string) (Tenant, error) {
	args := m.Called(tenantId)
	return args.Get(0).(Tenant), args.Error(1)
}
func (m *MockRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetUserById(ctx context.Context, userId string) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetUserInTenant(ctx context.Context, tenantId, userId string) (User, error) {
	args := m.Called(tenantId, userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) ListUsers(ctx context.Context, tenantId string) ([]User, error) {
	args := m.Called(tenantId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRepository) ListUsersByIds(ctx context.Context, tenantId string, userIds []string) ([]User, error) {
	args := m.Called(tenantId, userIds)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRepository) UpdateUserRole(ctx context.Context, tenantId, userId string, role types.Role) (User, error) {
	args := m.Called(tenantId, userId, role)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) ListClients(ctx context.Context, tenantId string) ([]Client, error) {
	args := m.Called(tenantId)
	return args.Get(0).([]Client), args.Error(1)
}
func (m *MockRepository) CreateClient(ctx context.Context, params ClientParams) (Client, error) {
	args := m.Called(params)
	return args.Get(0).(Client), args.Error(1)
}
func (m *MockRepository) UpdateClient(ctx context.Context, params ClientParams) (Client, error) {
	args := m.Called(params)
	return args.Get(0).(Client), args.Error(1)
}
func (m *MockRepository) DeleteClient(ctx context.Context, tenantId, clientId string) error {
	args := m.Called(tenantId, clientId)
	return args.Error(0)
}
func (m *MockRepository) ListTimeCards(ctx context.Context, tenantId, userId string) ([]TimeCard, error) {
	args := m.Called(tenantId, userId)
	return args.Get(0).([]TimeCard), args.Error(1)
}
func (m *MockRepository) CreateTimeCard(ctx context.Context, params CreateTimeCardParams) (TimeCard, error) {
	args := m.Called(params)
	return args.Get(0).(TimeCard), args.Error(1)
}
func (m *MockRepository) ReviewTimeCard(ctx context.Context, tenantId, timeCardId string, status types.TimeCardStatus, reviewerId string) (TimeCard, error) {
	args := m.Called(tenantId, timeCardId, status, reviewerId)
	return args.Get(0).(TimeCard), args.Error(1)
}
func (m *MockRepository) CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	args := m.Called(params)
	return args.Get(0).(Group), args.Error(1)
}
func (m *MockRepository) GetGroup(ctx context.Context, tenantId, groupId string) (Group, error) {
	args := m.Called(tenantId, groupId)
	return args.Get(0).(Group), args.Error(1)
}
func (m *MockRepository) ListGroupsForMember(ctx context.Context, tenantId, userId string) ([]Group, error) {
	args := m.Called(tenantId, userId)
	return args.Get(0).([]Group), args.Error(1)
}
func (m *MockRepository) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	args := m.Called(msg)
	if fn, ok := args.Get(0).(func(Message) Message); ok {
		return fn(msg), args.Error(1)
	}
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) QueryMessages(ctx context.Context, tenantId string, sel RoomSelector) ([]Message, error) {
	args := m.Called(tenantId, sel)
	return args.Get(0).([]Message), args.Error(1)
}
