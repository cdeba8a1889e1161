package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/swiftbook-app/swiftbook/internal/database"
	"github.com/swiftbook-app/swiftbook/internal/stats"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

var errServerStopped = errors.New("chat server stopped")

type joinReq struct {
	client   *Client
	kind     types.MessageType
	tenantId string
	selfId   string
	peerId   string
	groupId  string
	done     chan RoomKey
}

type broadcastReq struct {
	room RoomKey
	msg  *ServerMessage
}

type stopReq struct {
	done chan struct{}
}

// ChatServer owns every connected client and the room registry. All
// registry access happens on the Run goroutine.
type ChatServer struct {
	log            *logrus.Logger
	db             database.Repository
	groups         GroupDirectory
	router         *Router
	stats          stats.StatsProvider
	registry       *Registry
	clients        map[*Client]struct{}
	registerChan   chan *Client
	deregisterChan chan *Client
	joinChan       chan *joinReq
	broadcastChan  chan *broadcastReq
	stop           chan stopReq
	done           chan struct{}
}

func NewChatServer(logger *logrus.Logger, db database.Repository, groups GroupDirectory, su stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		db:             db,
		groups:         groups,
		stats:          su,
		registry:       NewRegistry(),
		clients:        make(map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client, 64),
		joinChan:       make(chan *joinReq, 256),
		broadcastChan:  make(chan *broadcastReq, 1024),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
	}
	cs.router = NewRouter(logger, db, groups, cs, su)

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.registerChan:
			cs.addClient(client)
		case client := <-cs.deregisterChan:
			cs.removeClient(client)
		case req := <-cs.joinChan:
			cs.handleJoin(req)
		case req := <-cs.broadcastChan:
			cs.handleBroadcast(req)
		case req := <-cs.stop:
			cs.log.Info("shutting down chat server")
			for c := range cs.clients {
				cs.removeClient(c)
				c.stopClient()
			}

			close(cs.done)
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) addClient(c *Client) {
	if _, ok := cs.clients[c]; ok {
		return
	}
	cs.clients[c] = struct{}{}
	cs.stats.ClientConnected()
	c.log.Info("client connected")
}

func (cs *ChatServer) removeClient(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}
	delete(cs.clients, c)
	cs.stats.ClientDisconnected()

	for _, key := range cs.registry.LeaveAll(c) {
		cs.stats.RoomClosed(key.Kind())
	}
	c.log.Info("client disconnected")
}

func (cs *ChatServer) handleJoin(req *joinReq) {
	var (
		key     RoomKey
		created bool
	)
	switch req.kind {
	case types.MessageBusiness:
		key, created = cs.registry.JoinBusinessRoom(req.client, req.tenantId)
	case types.MessageDirect:
		key, created = cs.registry.JoinDirectRoom(req.client, req.selfId, req.peerId)
	case types.MessageGroup:
		key, created = cs.registry.JoinGroupRoom(req.client, req.groupId)
	}

	if created {
		cs.stats.RoomOpened(key.Kind())
	}
	req.client.log.WithField("room", key).Debug("joined room")

	req.done <- key
}

func (cs *ChatServer) handleBroadcast(req *broadcastReq) {
	for _, c := range cs.registry.Members(req.room) {
		if !c.queueMessage(req.msg) {
			cs.stats.FrameDropped(req.room.Kind())
		}
	}
}

// RegisterClient hands c to the event loop. It must be called before the
// client's Read goroutine starts.
func (cs *ChatServer) RegisterClient(c *Client) {
	select {
	case cs.registerChan <- c:
	case <-cs.done:
	}
}

func (cs *ChatServer) DeregisterClient(c *Client) {
	select {
	case cs.deregisterChan <- c:
	case <-cs.done:
	}
}

// join adds the client to the room described by req and blocks until the event loop
// has applied it.
func (cs *ChatServer) join(req *joinReq) (RoomKey, error) {
	req.done = make(chan RoomKey, 1)

	select {
	case cs.joinChan <- req:
	case <-cs.done:
		return "", errServerStopped
	}

	select {
	case key := <-req.done:
		return key, nil
	case <-cs.done:
		return "", errServerStopped
	}
}

// Broadcast enqueues msg for every connection joined to room, in the order
// Broadcast is called.
func (cs *ChatServer) Broadcast(room RoomKey, msg types.Message) {
	select {
	case cs.broadcastChan <- &broadcastReq{room: room, msg: ReceiveMessage(msg)}:
	case <-cs.done:
		cs.log.WithField("room", room).Warn("dropped broadcast after shutdown")
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return fmt.Errorf("chat server shutdown: %w", ctx.Err())
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("chat server shutdown: %w", ctx.Err())
	}
}
