package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/swiftbook-app/swiftbook/internal/types"
)

type Tenant struct {
	Id        string
	Name      string
	CreatedAt time.Time
}

type User struct {
	Id           string
	Name         string
	EmailAddress string
	PasswordHash string
	TenantId     string
	Role         types.Role
	Phone        string
	Preferences  Preferences
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Preferences is stored as a jsonb document on the user row.
type Preferences struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
}

func (p Preferences) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Preferences) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = Preferences{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return errors.New("preferences: unsupported source type")
	}
}

type Client struct {
	Id        string
	TenantId  string
	Name      string
	Email     string
	Phone     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TimeCard struct {
	Id          string
	TenantId    string
	UserId      string
	Date        string
	HoursWorked float64
	Description string
	Status      types.TimeCardStatus
	ReviewedBy  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Group struct {
	Id        string
	TenantId  string
	Name      string
	MemberIds []string
	CreatedBy string
	CreatedAt time.Time
}

type Message struct {
	Id          string
	Type        types.MessageType
	TenantId    string
	SenderId    string
	RecipientId string
	GroupId     string
	Text        string
	CreatedAt   time.Time
}

// RoomSelector picks the message history of one room inside a tenant.
// Direct selectors match both directions of the sender/recipient pair.
type RoomSelector struct {
	Type    types.MessageType
	PeerA   string
	PeerB   string
	GroupId string
	Limit   int
}

func BusinessSelector() RoomSelector {
	return RoomSelector{Type: types.MessageBusiness}
}

func DirectSelector(a, b string) RoomSelector {
	return RoomSelector{Type: types.MessageDirect, PeerA: a, PeerB: b}
}

func GroupSelector(groupId string) RoomSelector {
	return RoomSelector{Type: types.MessageGroup, GroupId: groupId}
}

type RegisterParams struct {
	TenantId     string
	TenantName   string
	Name         string
	EmailAddress string
	PasswordHash string
}

type CreateUserParams struct {
	TenantId     string
	Name         string
	EmailAddress string
	PasswordHash string
	Role         types.Role
}

type UpdateProfileParams struct {
	UserId      string
	Name        string
	Phone       string
	Preferences Preferences
}

type ClientParams struct {
	Id       string
	TenantId string
	Name     string
	Email    string
	Phone    string
	Notes    string
}

type CreateTimeCardParams struct {
	TenantId    string
	UserId      string
	Date        string
	HoursWorked float64
	Description string
}

type CreateGroupParams struct {
	TenantId  string
	Name      string
	MemberIds []string
	CreatedBy string
}
