package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/swiftbook-app/swiftbook/internal/directory"
	"github.com/swiftbook-app/swiftbook/internal/identity"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
	eventTimeout   = 5 * time.Second
)

type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *logrus.Entry
	identity   identity.Identity
	send       chan *ServerMessage
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(id identity.Identity, conn *websocket.Conn, cs *ChatServer, l *logrus.Logger) *Client {
	connId := uuid.NewString()
	return &Client{
		id:         connId,
		conn:       conn,
		chatServer: cs,
		log: l.WithFields(logrus.Fields{
			"conn_id":   connId,
			"user_id":   id.UserId,
			"tenant_id": id.TenantId,
		}),
		identity: id,
		send:     make(chan *ServerMessage, 256),
		stop:     make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug("write exiting")
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Errorf("failed to serialize message: %v", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// Read processes frames strictly in order: each event completes before the
// next frame is read.
func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debug("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warnf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Infof("error parsing message: %v", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		c.queueMessage(c.handle(&msg))
	}
}

// handle runs a single client event and returns its response frame.
func (c *Client) handle(msg *ClientMessage) *ServerMessage {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var (
		resp *ServerMessage
		err  error
	)
	switch {
	case msg.JoinBusiness != nil:
		resp, err = c.joinBusiness(msg)
	case msg.JoinDM != nil:
		resp, err = c.joinDirect(ctx, msg)
	case msg.JoinGroup != nil:
		resp, err = c.joinGroup(ctx, msg)
	case msg.SendMessage != nil:
		resp, err = c.sendChatMessage(ctx, msg)
	default:
		err = fmt.Errorf("no event in frame: %w", types.ErrMalformedMessage)
	}

	if err != nil {
		c.log.WithField("msg_id", msg.Id).Infof("event rejected: %v", err)
		return ErrorFor(msg.Id, err)
	}

	return resp
}

// ownValue returns own when claimed is empty or matches it.
func ownValue(claimed, own, field string) (string, error) {
	if claimed != "" && claimed != own {
		return "", fmt.Errorf("%s %q does not match identity: %w", field, claimed, types.ErrForbidden)
	}
	return own, nil
}

func (c *Client) joinBusiness(msg *ClientMessage) (*ServerMessage, error) {
	tenantId, err := ownValue(msg.JoinBusiness.TenantId, c.identity.TenantId, "tenant_id")
	if err != nil {
		return nil, err
	}

	key, err := c.chatServer.join(&joinReq{client: c, kind: types.MessageBusiness, tenantId: tenantId})
	if err != nil {
		return nil, err
	}

	return NoErrOK(msg.Id, map[string]any{"room": key}), nil
}

func (c *Client) joinDirect(ctx context.Context, msg *ClientMessage) (*ServerMessage, error) {
	selfId, err := ownValue(msg.JoinDM.SenderId, c.identity.UserId, "sender_id")
	if err != nil {
		return nil, err
	}

	peerId := msg.JoinDM.RecipientId
	if peerId == "" || peerId == selfId {
		return nil, fmt.Errorf("invalid dm peer: %w", types.ErrMalformedMessage)
	}

	if _, err := c.chatServer.db.GetUserInTenant(ctx, c.identity.TenantId, peerId); err != nil {
		return nil, fmt.Errorf("resolve peer: %w", err)
	}

	key, err := c.chatServer.join(&joinReq{client: c, kind: types.MessageDirect, selfId: selfId, peerId: peerId})
	if err != nil {
		return nil, err
	}

	return NoErrOK(msg.Id, map[string]any{"room": key}), nil
}

func (c *Client) joinGroup(ctx context.Context, msg *ClientMessage) (*ServerMessage, error) {
	groupId := msg.JoinGroup.GroupId
	if groupId == "" {
		return nil, fmt.Errorf("missing group_id: %w", types.ErrMalformedMessage)
	}

	g, err := c.chatServer.groups.GetGroup(ctx, c.identity.TenantId, groupId)
	if err != nil {
		return nil, fmt.Errorf("resolve group: %w", err)
	}

	if !directory.IsMember(g, c.identity.UserId) {
		return nil, fmt.Errorf("not a member of group %q: %w", groupId, types.ErrForbidden)
	}

	key, err := c.chatServer.join(&joinReq{client: c, kind: types.MessageGroup, groupId: groupId})
	if err != nil {
		return nil, err
	}

	return NoErrOK(msg.Id, map[string]any{"room": key}), nil
}

func (c *Client) sendChatMessage(ctx context.Context, msg *ClientMessage) (*ServerMessage, error) {
	sm := msg.SendMessage

	tenantId, err := ownValue(sm.TenantId, c.identity.TenantId, "tenant_id")
	if err != nil {
		return nil, err
	}

	senderId, err := ownValue(sm.SenderId, c.identity.UserId, "sender_id")
	if err != nil {
		return nil, err
	}

	stored, err := c.chatServer.router.Route(ctx, OutboundMessage{
		Type:        sm.Type,
		TenantId:    tenantId,
		SenderId:    senderId,
		RecipientId: sm.RecipientId,
		GroupId:     sm.GroupId,
		Text:        sm.Text,
	})
	if err != nil {
		return nil, err
	}

	return NoErrAccepted(msg.Id, map[string]any{"message_id": stored.Id}), nil
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warnf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.chatServer.DeregisterClient(c)
	c.stopClient()
}
