package server

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/swiftbook-app/swiftbook/internal/database"
	"github.com/swiftbook-app/swiftbook/internal/directory"
	"github.com/swiftbook-app/swiftbook/internal/stats"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

const maxTextLength = 2000

type OutboundMessage struct {
	Type        types.MessageType
	TenantId    string
	SenderId    string
	RecipientId string
	GroupId     string
	Text        string
}

type Broadcaster interface {
	Broadcast(room RoomKey, msg types.Message)
}

type GroupDirectory interface {
	GetGroup(ctx context.Context, tenantId, groupId string) (types.Group, error)
}

// Router validates, stamps, persists and broadcasts chat messages. A message
// is only broadcast once it has been stored.
type Router struct {
	log    *logrus.Logger
	db     database.Repository
	groups GroupDirectory
	bc     Broadcaster
	stats  stats.StatsProvider
}

func NewRouter(logger *logrus.Logger, db database.Repository, groups GroupDirectory, bc Broadcaster, su stats.StatsProvider) *Router {
	return &Router{
		log:    logger,
		db:     db,
		groups: groups,
		bc:     bc,
		stats:  su,
	}
}

// Route stores and broadcasts out. Lookups honour ctx; once authorized, the
// write runs to completion so that a stored message is always broadcast.
func (r *Router) Route(ctx context.Context, out OutboundMessage) (types.Message, error) {
	out.Text = strings.TrimSpace(out.Text)
	if err := validate(out); err != nil {
		return types.Message{}, err
	}

	if err := r.authorize(ctx, out); err != nil {
		return types.Message{}, err
	}

	stored, err := r.db.AppendMessage(context.WithoutCancel(ctx), database.Message{
		Type:        out.Type,
		TenantId:    out.TenantId,
		SenderId:    out.SenderId,
		RecipientId: out.RecipientId,
		GroupId:     out.GroupId,
		Text:        out.Text,
		CreatedAt:   Now(),
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"tenant_id": out.TenantId,
			"type":      out.Type,
		}).Errorf("append message: %v", err)
		return types.Message{}, fmt.Errorf("%w: %w", types.ErrPersistence, err)
	}

	msg := ToMessage(stored)
	r.bc.Broadcast(RoomFor(msg), msg)
	r.stats.MessageRouted(msg.Type)

	return msg, nil
}

func validate(out OutboundMessage) error {
	switch out.Type {
	case types.MessageBusiness:
		if out.RecipientId != "" || out.GroupId != "" {
			return fmt.Errorf("business message with recipient or group: %w", types.ErrMalformedMessage)
		}
	case types.MessageDirect:
		if out.RecipientId == "" || out.GroupId != "" {
			return fmt.Errorf("dm requires exactly a recipient: %w", types.ErrMalformedMessage)
		}
		if out.RecipientId == out.SenderId {
			return fmt.Errorf("dm to self: %w", types.ErrMalformedMessage)
		}
	case types.MessageGroup:
		if out.GroupId == "" || out.RecipientId != "" {
			return fmt.Errorf("group message requires exactly a group: %w", types.ErrMalformedMessage)
		}
	default:
		return fmt.Errorf("message type %q: %w", out.Type, types.ErrMalformedMessage)
	}

	if out.TenantId == "" || out.SenderId == "" {
		return fmt.Errorf("missing tenant or sender: %w", types.ErrMalformedMessage)
	}

	if out.Text == "" {
		return fmt.Errorf("empty text: %w", types.ErrMalformedMessage)
	}

	if utf8.RuneCountInString(out.Text) > maxTextLength {
		return fmt.Errorf("text longer than %d characters: %w", maxTextLength, types.ErrMalformedMessage)
	}

	return nil
}

func (r *Router) authorize(ctx context.Context, out OutboundMessage) error {
	switch out.Type {
	case types.MessageDirect:
		if _, err := r.db.GetUserInTenant(ctx, out.TenantId, out.RecipientId); err != nil {
			return fmt.Errorf("resolve recipient: %w", err)
		}
	case types.MessageGroup:
		g, err := r.groups.GetGroup(ctx, out.TenantId, out.GroupId)
		if err != nil {
			return fmt.Errorf("resolve group: %w", err)
		}
		if !directory.IsMember(g, out.SenderId) {
			return fmt.Errorf("sender not in group: %w", types.ErrForbidden)
		}
	}

	return nil
}

func ToMessage(m database.Message) types.Message {
	return types.Message{
		Id:          m.Id,
		Type:        m.Type,
		TenantId:    m.TenantId,
		SenderId:    m.SenderId,
		RecipientId: m.RecipientId,
		GroupId:     m.GroupId,
		Text:        m.Text,
		Timestamp:   m.CreatedAt,
	}
}
