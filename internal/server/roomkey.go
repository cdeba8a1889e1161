package server

import (
	"strings"

	"github.com/swiftbook-app/swiftbook/internal/types"
)

// RoomKey identifies a broadcast room. Keys are namespaced by kind so a
// tenant id can never collide with a group id.
type RoomKey string

func BusinessRoom(tenantId string) RoomKey {
	return RoomKey("business:" + tenantId)
}

// DirectRoom is symmetric: DirectRoom(a, b) == DirectRoom(b, a).
func DirectRoom(a, b string) RoomKey {
	if b < a {
		a, b = b, a
	}
	return RoomKey("dm:" + a + ":" + b)
}

func GroupRoom(groupId string) RoomKey {
	return RoomKey("group:" + groupId)
}

// RoomFor resolves the room a stored message is delivered to.
func RoomFor(msg types.Message) RoomKey {
	switch msg.Type {
	case types.MessageDirect:
		return DirectRoom(msg.SenderId, msg.RecipientId)
	case types.MessageGroup:
		return GroupRoom(msg.GroupId)
	default:
		return BusinessRoom(msg.TenantId)
	}
}

func (k RoomKey) Kind() types.MessageType {
	kind, _, _ := strings.Cut(string(k), ":")
	return types.MessageType(kind)
}
