package directory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/swiftbook-app/swiftbook/internal/database"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

// Directory manages the named member sets used as group-chat targets.
// Every lookup is bounded to a single tenant.
type Directory struct {
	log *logrus.Logger
	db  database.Repository
}

func New(logger *logrus.Logger, db database.Repository) *Directory {
	return &Directory{log: logger, db: db}
}

// CreateGroup validates the member set against the tenant's principals and
// stores the group. Duplicate ids are collapsed; nothing is stored on error.
func (d *Directory) CreateGroup(ctx context.Context, tenantId, creatorId, name string, memberIds []string) (types.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Group{}, fmt.Errorf("group name required: %w", types.ErrMalformedMessage)
	}

	members := lo.Uniq(lo.Compact(memberIds))
	if len(members) == 0 {
		return types.Group{}, fmt.Errorf("empty member set: %w", types.ErrInvalidMembers)
	}

	users, err := d.db.ListUsersByIds(ctx, tenantId, members)
	if err != nil {
		return types.Group{}, fmt.Errorf("list users: %w", err)
	}

	known := lo.Map(users, func(u database.User, _ int) string { return u.Id })
	if missing := lo.Without(members, known...); len(missing) > 0 {
		d.log.WithFields(logrus.Fields{
			"tenant_id": tenantId,
			"missing":   missing,
		}).Info("rejected group with unknown members")
		return types.Group{}, fmt.Errorf("%d unknown member(s): %w", len(missing), types.ErrInvalidMembers)
	}

	g, err := d.db.CreateGroup(ctx, database.CreateGroupParams{
		TenantId:  tenantId,
		Name:      name,
		MemberIds: members,
		CreatedBy: creatorId,
	})
	if err != nil {
		return types.Group{}, fmt.Errorf("create group: %w", err)
	}

	return toGroup(g), nil
}

// GetGroup returns types.ErrNotFound when the group is absent or belongs to
// another tenant.
func (d *Directory) GetGroup(ctx context.Context, tenantId, groupId string) (types.Group, error) {
	g, err := d.db.GetGroup(ctx, tenantId, groupId)
	if err != nil {
		return types.Group{}, err
	}

	return toGroup(g), nil
}

func (d *Directory) ListGroupsForMember(ctx context.Context, tenantId, principalId string) ([]types.Group, error) {
	groups, err := d.db.ListGroupsForMember(ctx, tenantId, principalId)
	if err != nil {
		return nil, err
	}

	return lo.Map(groups, func(g database.Group, _ int) types.Group { return toGroup(g) }), nil
}

func IsMember(g types.Group, principalId string) bool {
	return slices.Contains(g.MemberIds, principalId)
}

func toGroup(g database.Group) types.Group {
	return types.Group{
		Id:        g.Id,
		TenantId:  g.TenantId,
		Name:      g.Name,
		MemberIds: g.MemberIds,
		CreatedBy: g.CreatedBy,
		CreatedAt: g.CreatedAt,
	}
}
