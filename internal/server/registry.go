package server

// Registry maps connections to the rooms they joined. It holds no lock and
// must only be used from the ChatServer event loop.
type Registry struct {
	rooms  map[RoomKey]map[*Client]struct{}
	joined map[*Client]map[RoomKey]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[RoomKey]map[*Client]struct{}),
		joined: make(map[*Client]map[RoomKey]struct{}),
	}
}

func (r *Registry) JoinBusinessRoom(c *Client, tenantId string) (RoomKey, bool) {
	key := BusinessRoom(tenantId)
	return key, r.join(c, key)
}

func (r *Registry) JoinDirectRoom(c *Client, selfId, peerId string) (RoomKey, bool) {
	key := DirectRoom(selfId, peerId)
	return key, r.join(c, key)
}

// JoinGroupRoom does not check membership; callers resolve the group first.
func (r *Registry) JoinGroupRoom(c *Client, groupId string) (RoomKey, bool) {
	key := GroupRoom(groupId)
	return key, r.join(c, key)
}

// join adds c to key and reports whether the room was created by this call.
// Joining a room twice is a no-op.
func (r *Registry) join(c *Client, key RoomKey) bool {
	members, existed := r.rooms[key]
	if !existed {
		members = make(map[*Client]struct{})
		r.rooms[key] = members
	}
	members[c] = struct{}{}

	rooms, ok := r.joined[c]
	if !ok {
		rooms = make(map[RoomKey]struct{})
		r.joined[c] = rooms
	}
	rooms[key] = struct{}{}

	return !existed
}

// LeaveAll removes c from every room it joined and returns the rooms left
// empty, which are dropped.
func (r *Registry) LeaveAll(c *Client) []RoomKey {
	var emptied []RoomKey
	for key := range r.joined[c] {
		members := r.rooms[key]
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, key)
			emptied = append(emptied, key)
		}
	}
	delete(r.joined, c)

	return emptied
}

func (r *Registry) Members(key RoomKey) []*Client {
	members := make([]*Client, 0, len(r.rooms[key]))
	for c := range r.rooms[key] {
		members = append(members, c)
	}
	return members
}

func (r *Registry) IsJoined(c *Client, key RoomKey) bool {
	_, ok := r.joined[c][key]
	return ok
}

func (r *Registry) NumRooms() int {
	return len(r.rooms)
}
