package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/swiftbook-app/swiftbook/internal/database"
	"github.com/swiftbook-app/swiftbook/internal/testutil"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()

	tcases := []struct {
		name      string
		groupName string
		members   []string
		known     []database.User
		listErr   error
		createErr error
		expectErr error
		stored    []string
	}{
		{
			name:      "creates group with deduplicated members",
			groupName: "Crew",
			members:   []string{"u1", "u2", "u1"},
			known:     []database.User{{Id: "u1"}, {Id: "u2"}},
			stored:    []string{"u1", "u2"},
		},
		{
			name:      "empty name",
			groupName: "  ",
			members:   []string{"u1"},
			expectErr: types.ErrMalformedMessage,
		},
		{
			name:      "empty member set",
			groupName: "Crew",
			members:   []string{},
			expectErr: types.ErrInvalidMembers,
		},
		{
			name:      "cross tenant member",
			groupName: "Crew",
			members:   []string{"u1", "other-tenant-user"},
			known:     []database.User{{Id: "u1"}},
			expectErr: types.ErrInvalidMembers,
		},
		{
			name:      "repository failure",
			groupName: "Crew",
			members:   []string{"u1"},
			known:     []database.User{{Id: "u1"}},
			createErr: errors.New("db down"),
			stored:    []string{"u1"},
			expectErr: errors.New("db down"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &database.MockRepository{}
			defer repo.AssertExpectations(t)

			if tc.known != nil {
				repo.On("ListUsersByIds", "acme", mock.Anything).Return(tc.known, tc.listErr).Once()
			}
			if tc.stored != nil {
				params := database.CreateGroupParams{
					TenantId:  "acme",
					Name:      "Crew",
					MemberIds: tc.stored,
					CreatedBy: "u1",
				}
				repo.On("CreateGroup", params).Return(database.Group{
					Id:        "g1",
					TenantId:  "acme",
					Name:      "Crew",
					MemberIds: tc.stored,
					CreatedBy: "u1",
				}, tc.createErr).Once()
			}

			d := New(testutil.TestLogger(t), repo)
			g, err := d.CreateGroup(ctx, "acme", "u1", tc.groupName, tc.members)

			switch {
			case tc.expectErr == nil:
				assert.NoError(t, err)
				assert.Equal(t, "g1", g.Id)
				assert.Equal(t, tc.stored, g.MemberIds)
			case errors.Is(tc.expectErr, types.ErrMalformedMessage), errors.Is(tc.expectErr, types.ErrInvalidMembers):
				assert.ErrorIs(t, err, tc.expectErr)
				repo.AssertNotCalled(t, "CreateGroup", mock.Anything)
			default:
				assert.ErrorContains(t, err, tc.expectErr.Error())
			}
		})
	}
}

func TestGetGroup(t *testing.T) {
	repo := &database.MockRepository{}
	defer repo.AssertExpectations(t)

	stored := database.Group{Id: "g1", TenantId: "acme", Name: "Crew", MemberIds: []string{"u1", "u2"}}
	repo.On("GetGroup", "acme", "g1").Return(stored, nil).Once()
	repo.On("GetGroup", "other", "g1").Return(database.Group{}, types.ErrNotFound).Once()

	d := New(testutil.TestLogger(t), repo)

	g, err := d.GetGroup(context.Background(), "acme", "g1")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, g.MemberIds)
	assert.True(t, IsMember(g, "u2"))
	assert.False(t, IsMember(g, "u3"))

	_, err = d.GetGroup(context.Background(), "other", "g1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListGroupsForMember(t *testing.T) {
	repo := &database.MockRepository{}
	defer repo.AssertExpectations(t)

	repo.On("ListGroupsForMember", "acme", "u1").Return([]database.Group{
		{Id: "g1", TenantId: "acme", MemberIds: []string{"u1"}},
		{Id: "g2", TenantId: "acme", MemberIds: []string{"u1", "u2"}},
	}, nil).Once()

	d := New(testutil.TestLogger(t), repo)
	groups, err := d.ListGroupsForMember(context.Background(), "acme", "u1")
	assert.NoError(t, err)
	assert.Len(t, groups, 2)
	assert.Equal(t, "g2", groups[1].Id)
}
