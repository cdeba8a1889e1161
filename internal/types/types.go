package types

import (
	"time"
)

type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

var roleRank = map[Role]int{
	RoleEmployee: 1,
	RoleManager:  2,
	RoleAdmin:    3,
	RoleOwner:    4,
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank orders roles by privilege. Unknown roles rank 0.
func (r Role) Rank() int {
	return roleRank[r]
}

// Outranks reports whether r is strictly more privileged than other.
func (r Role) Outranks(other Role) bool {
	return r.Rank() > other.Rank()
}

// In reports whether r is any of roles.
func (r Role) In(roles ...Role) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type Tenant struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Preferences struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
}

type User struct {
	Id           string      `json:"id"`
	Name         string      `json:"name"`
	EmailAddress string      `json:"email_address,omitempty"`
	TenantId     string      `json:"tenant_id"`
	Role         Role        `json:"role"`
	Phone        string      `json:"phone,omitempty"`
	Preferences  Preferences `json:"preferences"`
	CreatedAt    time.Time   `json:"created_at,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at,omitempty"`
}

type ClientRecord struct {
	Id        string    `json:"id"`
	TenantId  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type TimeCardStatus string

const (
	TimeCardPending  TimeCardStatus = "pending"
	TimeCardApproved TimeCardStatus = "approved"
	TimeCardRejected TimeCardStatus = "rejected"
)

type TimeCard struct {
	Id          string         `json:"id"`
	TenantId    string         `json:"tenant_id"`
	UserId      string         `json:"user_id"`
	Date        string         `json:"date"`
	HoursWorked float64        `json:"hours_worked"`
	Description string         `json:"description"`
	Status      TimeCardStatus `json:"status"`
	ReviewedBy  string         `json:"reviewed_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

type Group struct {
	Id        string    `json:"id"`
	TenantId  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	MemberIds []string  `json:"member_ids"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageType string

const (
	MessageBusiness MessageType = "business"
	MessageDirect   MessageType = "dm"
	MessageGroup    MessageType = "group"
)

func (t MessageType) Valid() bool {
	return t == MessageBusiness || t == MessageDirect || t == MessageGroup
}

type Message struct {
	Id          string      `json:"id"`
	Type        MessageType `json:"type"`
	TenantId    string      `json:"tenant_id"`
	SenderId    string      `json:"sender_id"`
	RecipientId string      `json:"recipient_id,omitempty"`
	GroupId     string      `json:"group_id,omitempty"`
	Text        string      `json:"text"`
	Timestamp   time.Time   `json:"timestamp"`
}
