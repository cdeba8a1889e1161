package database

import (
	"context"

	"github.com/swiftbook-app/swiftbook/internal/types"
)

type Repository interface {
	Ping() error

	// RegisterPrincipal creates the tenant when it does not exist yet and
	// inserts the user, who becomes owner if the tenant had no users.
	RegisterPrincipal(ctx context.Context, params RegisterParams) (User, error)
	GetTenant(ctx context.Context, tenantId string) (Tenant, error)

	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserById(ctx context.Context, userId string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserInTenant(ctx context.Context, tenantId, userId string) (User, error)
	ListUsers(ctx context.Context, tenantId string) ([]User, error)
	ListUsersByIds(ctx context.Context, tenantId string, userIds []string) ([]User, error)
	UpdateUserRole(ctx context.Context, tenantId, userId string, role types.Role) (User, error)
	UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error)

	ListClients(ctx context.Context, tenantId string) ([]Client, error)
	CreateClient(ctx context.Context, params ClientParams) (Client, error)
	UpdateClient(ctx context.Context, params ClientParams) (Client, error)
	DeleteClient(ctx context.Context, tenantId, clientId string) error

	ListTimeCards(ctx context.Context, tenantId, userId string) ([]TimeCard, error)
	CreateTimeCard(ctx context.Context, params CreateTimeCardParams) (TimeCard, error)
	ReviewTimeCard(ctx context.Context, tenantId, timeCardId string, status types.TimeCardStatus, reviewerId string) (TimeCard, error)

	CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error)
	GetGroup(ctx context.Context, tenantId, groupId string) (Group, error)
	ListGroupsForMember(ctx context.Context, tenantId, userId string) ([]Group, error)

	AppendMessage(ctx context.Context, msg Message) (Message, error)
	QueryMessages(ctx context.Context, tenantId string, sel RoomSelector) ([]Message, error)
}
