package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/swiftbook-app/swiftbook/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	JoinBusiness *JoinBusiness `json:"join_business,omitempty"`
	JoinDM       *JoinDM       `json:"join_dm,omitempty"`
	JoinGroup    *JoinGroup    `json:"join_group,omitempty"`
	SendMessage  *SendMessage  `json:"send_message,omitempty"`
}

type JoinBusiness struct {
	TenantId string `json:"tenant_id"`
}

type JoinDM struct {
	SenderId    string `json:"sender_id"`
	RecipientId string `json:"recipient_id"`
}

type JoinGroup struct {
	GroupId string `json:"group_id"`
}

type SendMessage struct {
	Type        types.MessageType `json:"type"`
	TenantId    string            `json:"tenant_id"`
	SenderId    string            `json:"sender_id"`
	RecipientId string            `json:"recipient_id,omitempty"`
	GroupId     string            `json:"group_id,omitempty"`
	Text        string            `json:"text"`
}

type ServerMessage struct {
	BaseMessage
	Response       *Response      `json:"response,omitempty"`
	ReceiveMessage *types.Message `json:"receive_message,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
			Data:         data,
		},
	}
}

func errResponse(id, code int, text string) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        text,
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrNotFound(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "not found")
}

func ErrForbidden(id int) *ServerMessage {
	return errResponse(id, http.StatusForbidden, "forbidden")
}

func ErrInternalError(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "internal server error")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInvalidMessage(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "invalid message format")
}

func ErrInvalidMembers(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "invalid members")
}

// ErrorFor maps a domain error onto its response frame.
func ErrorFor(id int, err error) *ServerMessage {
	switch {
	case errors.Is(err, types.ErrMalformedMessage):
		return ErrInvalidMessage(id)
	case errors.Is(err, types.ErrInvalidMembers):
		return ErrInvalidMembers(id)
	case errors.Is(err, types.ErrForbidden):
		return ErrForbidden(id)
	case errors.Is(err, types.ErrNotFound):
		return ErrNotFound(id)
	case errors.Is(err, errServerStopped):
		return ErrServiceUnavailable(id)
	default:
		return ErrInternalError(id)
	}
}

func ReceiveMessage(msg types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: msg.Timestamp,
		},
		ReceiveMessage: &msg,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
