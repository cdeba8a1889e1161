package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

const (
	userColumns     = "id, tenant_id, name, email, password_hash, role, phone, preferences, created_at, updated_at"
	clientColumns   = "id, tenant_id, name, email, phone, notes, created_at, updated_at"
	timeCardColumns = "id, tenant_id, user_id, work_date, hours_worked, description, status, reviewed_by, created_at, updated_at"
	groupColumns    = "id, tenant_id, name, member_ids, created_by, created_at"
	messageColumns  = "id, type, tenant_id, sender_id, recipient_id, group_id, text, created_at"

	defaultMessageLimit = 100
	uniqueViolation     = "23505"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// notFound converts sql.ErrNoRows into types.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return types.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.TenantId,
		&u.Name,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.Role,
		&u.Phone,
		&u.Preferences,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func scanClient(row rowScanner) (Client, error) {
	var c Client
	err := row.Scan(&c.Id, &c.TenantId, &c.Name, &c.Email, &c.Phone, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanTimeCard(row rowScanner) (TimeCard, error) {
	var tc TimeCard
	err := row.Scan(
		&tc.Id,
		&tc.TenantId,
		&tc.UserId,
		&tc.Date,
		&tc.HoursWorked,
		&tc.Description,
		&tc.Status,
		&tc.ReviewedBy,
		&tc.CreatedAt,
		&tc.UpdatedAt,
	)
	return tc, err
}

func scanGroup(row rowScanner) (Group, error) {
	var g Group
	err := row.Scan(&g.Id, &g.TenantId, &g.Name, pq.Array(&g.MemberIds), &g.CreatedBy, &g.CreatedAt)
	return g, err
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		msg         Message
		recipientId sql.NullString
		groupId     sql.NullString
	)
	err := row.Scan(
		&msg.Id,
		&msg.Type,
		&msg.TenantId,
		&msg.SenderId,
		&recipientId,
		&groupId,
		&msg.Text,
		&msg.CreatedAt,
	)
	msg.RecipientId = recipientId.String
	msg.GroupId = groupId.String
	return msg, err
}

func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func (db *PgRepository) RegisterPrincipal(ctx context.Context, params RegisterParams) (User, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := db.now()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING",
		params.TenantId,
		params.TenantName,
		now,
	)
	if err != nil {
		return User{}, err
	}

	// lock the tenant row so concurrent signups agree on who is first
	var tenantId string
	err = tx.QueryRowContext(ctx, "SELECT id FROM tenants WHERE id = $1 FOR UPDATE", params.TenantId).Scan(&tenantId)
	if err != nil {
		return User{}, err
	}

	var count int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE tenant_id = $1", tenantId).Scan(&count)
	if err != nil {
		return User{}, err
	}

	role := types.RoleEmployee
	if count == 0 {
		role = types.RoleOwner
	}

	var user User
	user, err = scanUser(tx.QueryRowContext(ctx,
		"INSERT INTO users (id, tenant_id, name, email, password_hash, role, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING "+userColumns,
		uuid.NewString(),
		tenantId,
		params.Name,
		params.EmailAddress,
		params.PasswordHash,
		role,
		now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("email already registered: %w", types.ErrConflict)
		}
		return User{}, err
	}

	if err = tx.Commit(); err != nil {
		return User{}, err
	}

	return user, nil
}

func (db *PgRepository) GetTenant(ctx context.Context, tenantId string) (Tenant, error) {
	var t Tenant
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM tenants WHERE id = $1",
		tenantId,
	).Scan(&t.Id, &t.Name, &t.CreatedAt)

	return t, notFound(err)
}

func (db *PgRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	now := db.now()
	user, err := scanUser(db.conn.QueryRowContext(ctx,
		"INSERT INTO users (id, tenant_id, name, email, password_hash, role, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING "+userColumns,
		uuid.NewString(),
		params.TenantId,
		params.Name,
		params.EmailAddress,
		params.PasswordHash,
		params.Role,
		now,
	))
	if isUniqueViolation(err) {
		return User{}, fmt.Errorf("email already registered: %w", types.ErrConflict)
	}

	return user, err
}

func (db *PgRepository) GetUserById(ctx context.Context, userId string) (User, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1",
		userId,
	))

	return user, notFound(err)
}

func (db *PgRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1",
		email,
	))

	return user, notFound(err)
}

func (db *PgRepository) GetUserInTenant(ctx context.Context, tenantId, userId string) (User, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id = $1 AND id = $2",
		tenantId,
		userId,
	))

	return user, notFound(err)
}

func (db *PgRepository) ListUsers(ctx context.Context, tenantId string) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id = $1 ORDER BY created_at",
		tenantId,
	)
	if err != nil {
		return nil, err
	}

	return collect(rows, scanUser)
}

func (db *PgRepository) ListUsersByIds(ctx context.Context, tenantId string, userIds []string) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id = $1 AND id = ANY($2)",
		tenantId,
		pq.Array(userIds),
	)
	if err != nil {
		return nil, err
	}

	return collect(rows, scanUser)
}

func (db *PgRepository) UpdateUserRole(ctx context.Context, tenantId, userId string, role types.Role) (User, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx,
		"UPDATE users SET role = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2 RETURNING "+userColumns,
		tenantId,
		userId,
		role,
		db.now(),
	))

	return user, notFound(err)
}

func (db *PgRepository) UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx,
		"UPDATE users SET name = $2, phone = $3, preferences = $4, updated_at = $5 WHERE id = $1 RETURNING "+userColumns,
		params.UserId,
		params.Name,
		params.Phone,
		params.Preferences,
		db.now(),
	))

	return user, notFound(err)
}

func (db *PgRepository) ListClients(ctx context.Context, tenantId string) ([]Client, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE tenant_id = $1 ORDER BY created_at",
		tenantId,
	)
	if err != nil {
		return nil, err
	}

	return collect(rows, scanClient)
}

func (db *PgRepository) CreateClient(ctx context.Context, params ClientParams) (Client, error) {
	now := db.now()
	return scanClient(db.conn.QueryRowContext(ctx,
		"INSERT INTO clients (id, tenant_id, name, email, phone, notes, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING "+clientColumns,
		uuid.NewString(),
		params.TenantId,
		params.Name,
		params.Email,
		params.Phone,
		params.Notes,
		now,
	))
}

func (db *PgRepository) UpdateClient(ctx context.Context, params ClientParams) (Client, error) {
	c, err := scanClient(db.conn.QueryRowContext(ctx,
		"UPDATE clients SET name = $3, email = $4, phone = $5, notes = $6, updated_at = $7 "+
			"WHERE tenant_id = $1 AND id = $2 RETURNING "+clientColumns,
		params.TenantId,
		params.Id,
		params.Name,
		params.Email,
		params.Phone,
		params.Notes,
		db.now(),
	))

	return c, notFound(err)
}

func (db *PgRepository) DeleteClient(ctx context.Context, tenantId, clientId string) error {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM clients WHERE tenant_id = $1 AND id = $2",
		tenantId,
		clientId,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}

	return nil
}

// ListTimeCards returns every card of the tenant, or only userId's cards
// when userId is not empty.
func (db *PgRepository) ListTimeCards(ctx context.Context, tenantId, userId string) ([]TimeCard, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+timeCardColumns+" FROM timecards "+
			"WHERE tenant_id = $1 AND ($2::text = '' OR user_id = $2) ORDER BY work_date DESC, created_at DESC",
		tenantId,
		userId,
	)
	if err != nil {
		return nil, err
	}

	return collect(rows, scanTimeCard)
}

func (db *PgRepository) CreateTimeCard(ctx context.Context, params CreateTimeCardParams) (TimeCard, error) {
	now := db.now()
	return scanTimeCard(db.conn.QueryRowContext(ctx,
		"INSERT INTO timecards (id, tenant_id, user_id, work_date, hours_worked, description, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING "+timeCardColumns,
		uuid.NewString(),
		params.TenantId,
		params.UserId,
		params.Date,
		params.HoursWorked,
		params.Description,
		types.TimeCardPending,
		now,
	))
}

// ReviewTimeCard moves a pending card to status. Cards that were already
// reviewed yield types.ErrConflict.
func (db *PgRepository) ReviewTimeCard(ctx context.Context, tenantId, timeCardId string, status types.TimeCardStatus, reviewerId string) (TimeCard, error) {
	tc, err := scanTimeCard(db.conn.QueryRowContext(ctx,
		"UPDATE timecards SET status = $3, reviewed_by = $4, updated_at = $5 "+
			"WHERE tenant_id = $1 AND id = $2 AND status = 'pending' RETURNING "+timeCardColumns,
		tenantId,
		timeCardId,
		status,
		reviewerId,
		db.now(),
	))
	if !errors.Is(err, sql.ErrNoRows) {
		return tc, err
	}

	var exists bool
	err = db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM timecards WHERE tenant_id = $1 AND id = $2)",
		tenantId,
		timeCardId,
	).Scan(&exists)
	if err != nil {
		return TimeCard{}, err
	}
	if exists {
		return TimeCard{}, fmt.Errorf("time card already reviewed: %w", types.ErrConflict)
	}

	return TimeCard{}, types.ErrNotFound
}

func (db *PgRepository) CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	return scanGroup(db.conn.QueryRowContext(ctx,
		"INSERT INTO groups (id, tenant_id, name, member_ids, created_by, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+groupColumns,
		uuid.NewString(),
		params.TenantId,
		params.Name,
		pq.Array(params.MemberIds),
		params.CreatedBy,
		db.now(),
	))
}

func (db *PgRepository) GetGroup(ctx context.Context, tenantId, groupId string) (Group, error) {
	g, err := scanGroup(db.conn.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE tenant_id = $1 AND id = $2",
		tenantId,
		groupId,
	))

	return g, notFound(err)
}

func (db *PgRepository) ListGroupsForMember(ctx context.Context, tenantId, userId string) ([]Group, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE tenant_id = $1 AND $2 = ANY(member_ids) ORDER BY created_at",
		tenantId,
		userId,
	)
	if err != nil {
		return nil, err
	}

	return collect(rows, scanGroup)
}

// AppendMessage assigns the message id and inserts it. Messages are never
// updated or deleted afterwards.
func (db *PgRepository) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	if msg.Id == "" {
		msg.Id = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = db.now()
	}

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO messages ("+messageColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		msg.Id,
		msg.Type,
		msg.TenantId,
		msg.SenderId,
		nullString(msg.RecipientId),
		nullString(msg.GroupId),
		msg.Text,
		msg.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	return msg, nil
}

// QueryMessages returns the latest messages of the selected room in append
// order, oldest first. Messages sharing a timestamp keep their insert order.
func (db *PgRepository) QueryMessages(ctx context.Context, tenantId string, sel RoomSelector) ([]Message, error) {
	limit := sel.Limit
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	var (
		where string
		args  = []any{tenantId, sel.Type, limit}
	)
	switch sel.Type {
	case types.MessageBusiness:
		where = "tenant_id = $1 AND type = $2"
	case types.MessageDirect:
		where = "tenant_id = $1 AND type = $2 AND " +
			"((sender_id = $4 AND recipient_id = $5) OR (sender_id = $5 AND recipient_id = $4))"
		args = append(args, sel.PeerA, sel.PeerB)
	case types.MessageGroup:
		where = "tenant_id = $1 AND type = $2 AND group_id = $4"
		args = append(args, sel.GroupId)
	default:
		return nil, fmt.Errorf("room selector type %q: %w", sel.Type, types.ErrMalformedMessage)
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE "+where+" ORDER BY seq DESC LIMIT $3",
		args...,
	)
	if err != nil {
		return nil, err
	}

	messages, err := collect(rows, scanMessage)
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}
