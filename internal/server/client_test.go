package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/swiftbook-app/swiftbook/internal/database"
	"github.com/swiftbook-app/swiftbook/internal/identity"
	"github.com/swiftbook-app/swiftbook/internal/stats"
	"github.com/swiftbook-app/swiftbook/internal/testutil"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

func Test_queueMessage(t *testing.T) {
	cs := &ChatServer{log: testutil.TestLogger(t)}

	t.Run("successful queue", func(t *testing.T) {
		c := newTestClient(cs, "u1")
		c.send = make(chan *ServerMessage, 1)

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := newTestClient(cs, "u1")
		c.send = make(chan *ServerMessage, 1)

		c.send <- &ServerMessage{}
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_serializeMessage(t *testing.T) {
	message := &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        1,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: 200,
			Data:         "test data",
		},
	}

	expected := `{"id":1,"timestamp":"` + message.Timestamp.Format(time.RFC3339Nano) +
		`","response":{"response_code":200,"data":"test data"}}`

	bytes, err := serializeMessage(message)
	assert.NoError(t, err, "expected no error during serialization")
	assert.Equal(t, expected, string(bytes), "expected serialized message to match the expected format")
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()
	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}

func Test_handleIdentityOverride(t *testing.T) {
	cs := &ChatServer{log: testutil.TestLogger(t)}
	c := newTestClient(cs, "u1")

	tcases := []struct {
		name string
		msg  *ClientMessage
		code int
	}{
		{
			name: "join other tenant",
			msg:  &ClientMessage{BaseMessage: BaseMessage{Id: 1}, JoinBusiness: &JoinBusiness{TenantId: "other"}},
			code: http.StatusForbidden,
		},
		{
			name: "join dm as someone else",
			msg:  &ClientMessage{BaseMessage: BaseMessage{Id: 2}, JoinDM: &JoinDM{SenderId: "u9", RecipientId: "u2"}},
			code: http.StatusForbidden,
		},
		{
			name: "join dm with self",
			msg:  &ClientMessage{BaseMessage: BaseMessage{Id: 3}, JoinDM: &JoinDM{RecipientId: "u1"}},
			code: http.StatusBadRequest,
		},
		{
			name: "join group without id",
			msg:  &ClientMessage{BaseMessage: BaseMessage{Id: 4}, JoinGroup: &JoinGroup{}},
			code: http.StatusBadRequest,
		},
		{
			name: "send as someone else",
			msg: &ClientMessage{BaseMessage: BaseMessage{Id: 5}, SendMessage: &SendMessage{
				Type: types.MessageBusiness, SenderId: "u9", Text: "spoof",
			}},
			code: http.StatusForbidden,
		},
		{
			name: "send into other tenant",
			msg: &ClientMessage{BaseMessage: BaseMessage{Id: 6}, SendMessage: &SendMessage{
				Type: types.MessageBusiness, TenantId: "other", Text: "spoof",
			}},
			code: http.StatusForbidden,
		},
		{
			name: "empty frame",
			msg:  &ClientMessage{BaseMessage: BaseMessage{Id: 7}},
			code: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			resp := c.handle(tc.msg)
			assert.Equal(t, tc.msg.Id, resp.Id)
			assert.Equal(t, tc.code, resp.Response.ResponseCode)
		})
	}
}

type wsHarness struct {
	t   *testing.T
	cs  *ChatServer
	srv *httptest.Server
}

// newWsHarness serves websocket connections whose identity is taken from the
// user query parameter, all within tenant acme.
func newWsHarness(t *testing.T, db *database.MockRepository) *wsHarness {
	su := (&stats.MockStatsUpdater{}).AllowAny()

	cs := newTestChatServer(t, db, su)
	go cs.Run()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		id := identity.Identity{UserId: r.URL.Query().Get("user"), TenantId: "acme", Role: types.RoleEmployee}
		client := NewClient(id, conn, cs, cs.log)
		cs.RegisterClient(client)
		go client.Write()
		go client.Read()
	}))

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		cs.Shutdown(ctx)
	})

	return &wsHarness{t: t, cs: cs, srv: srv}
}

func (h *wsHarness) dial(userId string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/?user=" + userId
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		h.t.Fatalf("dial: %v", err)
	}
	h.t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(conn *websocket.Conn, timeout time.Duration) (*ServerMessage, error) {
	conn.SetReadDeadline(time.Now().Add(timeout))
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// request writes frame and returns the response frame with the same id,
// collecting any receive_message frames that arrive before it.
func request(t *testing.T, conn *websocket.Conn, frame map[string]any) (*Response, []*types.Message) {
	t.Helper()
	assert.NoError(t, conn.WriteJSON(frame))

	var received []*types.Message
	for {
		msg, err := readFrame(conn, 2*time.Second)
		if err != nil {
			t.Fatalf("waiting for response: %v", err)
		}
		if msg.ReceiveMessage != nil {
			received = append(received, msg.ReceiveMessage)
			continue
		}
		if msg.Response != nil && msg.Id == frame["id"] {
			return msg.Response, received
		}
	}
}

func drainReceived(conn *websocket.Conn, timeout time.Duration) []*types.Message {
	var received []*types.Message
	for {
		msg, err := readFrame(conn, timeout)
		if err != nil {
			return received
		}
		if msg.ReceiveMessage != nil {
			received = append(received, msg.ReceiveMessage)
		}
	}
}

func expectAppend(db *database.MockRepository) {
	db.On("AppendMessage", mock.AnythingOfType("database.Message")).
		Return(func(m database.Message) database.Message {
			m.Id = "m-" + m.SenderId
			return m
		}, nil)
}

func TestGroupScenario(t *testing.T) {
	db := &database.MockRepository{}
	db.On("GetGroup", "acme", "g1").Return(database.Group{Id: "g1", TenantId: "acme", MemberIds: []string{"u1", "u2"}}, nil)
	expectAppend(db)

	h := newWsHarness(t, db)
	alice := h.dial("u1")
	bob := h.dial("u2")
	carol := h.dial("u3")

	resp, _ := request(t, alice, map[string]any{"id": 1, "join_group": map[string]any{"group_id": "g1"}})
	assert.Equal(t, http.StatusOK, resp.ResponseCode)
	resp, _ = request(t, bob, map[string]any{"id": 1, "join_group": map[string]any{"group_id": "g1"}})
	assert.Equal(t, http.StatusOK, resp.ResponseCode)

	resp, _ = request(t, carol, map[string]any{"id": 1, "join_group": map[string]any{"group_id": "g1"}})
	assert.Equal(t, http.StatusForbidden, resp.ResponseCode, "expected non-member join to be rejected")

	resp, fromAlice := request(t, alice, map[string]any{"id": 2, "send_message": map[string]any{
		"type": "group", "group_id": "g1", "text": "standup in 5",
	}})
	assert.Equal(t, http.StatusAccepted, resp.ResponseCode)
	assert.Equal(t, map[string]any{"message_id": "m-u1"}, resp.Data)

	fromAlice = append(fromAlice, drainReceived(alice, 200*time.Millisecond)...)
	fromBob := drainReceived(bob, 200*time.Millisecond)
	fromCarol := drainReceived(carol, 200*time.Millisecond)

	for name, received := range map[string][]*types.Message{"alice": fromAlice, "bob": fromBob} {
		if assert.Len(t, received, 1, "expected %s to receive exactly one message", name) {
			assert.Equal(t, types.MessageGroup, received[0].Type)
			assert.Equal(t, "u1", received[0].SenderId)
			assert.Equal(t, "acme", received[0].TenantId)
			assert.Equal(t, "standup in 5", received[0].Text)
		}
	}
	assert.Empty(t, fromCarol, "expected non-member to receive nothing")
}

func TestDirectScenarioLateJoiner(t *testing.T) {
	db := &database.MockRepository{}
	db.On("GetUserInTenant", "acme", "u2").Return(database.User{Id: "u2", TenantId: "acme"}, nil)
	db.On("GetUserInTenant", "acme", "u1").Return(database.User{Id: "u1", TenantId: "acme"}, nil)
	expectAppend(db)

	h := newWsHarness(t, db)
	alice := h.dial("u1")
	bob := h.dial("u2")

	resp, _ := request(t, alice, map[string]any{"id": 1, "join_dm": map[string]any{"sender_id": "u1", "recipient_id": "u2"}})
	assert.Equal(t, http.StatusOK, resp.ResponseCode)
	assert.Equal(t, map[string]any{"room": string(DirectRoom("u1", "u2"))}, resp.Data)

	resp, _ = request(t, alice, map[string]any{"id": 2, "send_message": map[string]any{
		"type": "dm", "recipient_id": "u2", "text": "lunch?",
	}})
	assert.Equal(t, http.StatusAccepted, resp.ResponseCode)
	assert.Empty(t, drainReceived(bob, 200*time.Millisecond), "expected peer that has not joined to get no live frame")

	resp, _ = request(t, bob, map[string]any{"id": 1, "join_dm": map[string]any{"recipient_id": "u1"}})
	assert.Equal(t, http.StatusOK, resp.ResponseCode)
	assert.Empty(t, drainReceived(bob, 200*time.Millisecond), "expected no backlog replay on join")

	resp, _ = request(t, bob, map[string]any{"id": 2, "send_message": map[string]any{
		"type": "dm", "recipient_id": "u1", "text": "sure",
	}})
	assert.Equal(t, http.StatusAccepted, resp.ResponseCode)

	received := drainReceived(alice, 200*time.Millisecond)
	texts := make([]string, 0, len(received))
	for _, m := range received {
		texts = append(texts, m.Text)
	}
	assert.Contains(t, texts, "sure")
}

func TestBusinessJoinTwiceSingleDelivery(t *testing.T) {
	db := &database.MockRepository{}
	expectAppend(db)

	h := newWsHarness(t, db)
	alice := h.dial("u1")
	bob := h.dial("u2")
	idle := h.dial("u3")

	for i := 1; i <= 2; i++ {
		resp, _ := request(t, bob, map[string]any{"id": i, "join_business": map[string]any{"tenant_id": "acme"}})
		assert.Equal(t, http.StatusOK, resp.ResponseCode)
	}
	resp, _ := request(t, alice, map[string]any{"id": 1, "join_business": map[string]any{}})
	assert.Equal(t, http.StatusOK, resp.ResponseCode)

	resp, _ = request(t, alice, map[string]any{"id": 2, "send_message": map[string]any{
		"type": "business", "text": "hello team",
	}})
	assert.Equal(t, http.StatusAccepted, resp.ResponseCode)

	assert.Len(t, drainReceived(bob, 200*time.Millisecond), 1, "expected double join to deliver once")
	assert.Empty(t, drainReceived(idle, 200*time.Millisecond), "expected unjoined connection to receive nothing")
}

func TestInvalidFrame(t *testing.T) {
	h := newWsHarness(t, &database.MockRepository{})
	conn := h.dial("u1")

	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg, err := readFrame(conn, 2*time.Second)
	if assert.NoError(t, err) && assert.NotNil(t, msg.Response) {
		assert.Equal(t, http.StatusBadRequest, msg.Response.ResponseCode)
		assert.Equal(t, 0, msg.Id)
	}

	resp, _ := request(t, conn, map[string]any{"id": 9, "send_message": map[string]any{"type": "business", "text": " "}})
	assert.Equal(t, http.StatusBadRequest, resp.ResponseCode)
}
