package database

import (
	"database/sql"
	"time"
)

type PgRepository struct {
	conn *sql.DB
	now  func() time.Time
}

func NewPgRepository(dsn string) (*PgRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgRepository{conn: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (db *PgRepository) DB() *sql.DB {
	return db.conn
}

func (db *PgRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
