package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duel-relay/internal/session"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the game_sessions table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS game_sessions (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	slot0_player          TEXT,
	slot0_client_id       TEXT,
	slot0_connected       BOOLEAN NOT NULL DEFAULT FALSE,
	slot0_ever_connected  BOOLEAN NOT NULL DEFAULT FALSE,
	slot1_player          TEXT,
	slot1_client_id       TEXT,
	slot1_connected       BOOLEAN NOT NULL DEFAULT FALSE,
	slot1_ever_connected  BOOLEAN NOT NULL DEFAULT FALSE,
	version               BIGINT NOT NULL DEFAULT 1,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS game_sessions_slot0_client_idx ON game_sessions (slot0_client_id);
CREATE INDEX IF NOT EXISTS game_sessions_slot1_client_idx ON game_sessions (slot1_client_id);
CREATE INDEX IF NOT EXISTS game_sessions_name_idx ON game_sessions (name);
`

const sessionColumns = `id, name,
	slot0_player, slot0_client_id, slot0_connected, slot0_ever_connected,
	slot1_player, slot1_client_id, slot1_connected, slot1_ever_connected,
	version, created_at`

var queryColumns = map[string]string{
	session.FieldName:        "name",
	session.FieldSlot0Client: "slot0_client_id",
	session.FieldSlot1Client: "slot1_client_id",
}

// Postgres stores sessions in PostgreSQL.
type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Pool.Ping(ctx)
}

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, Schema)
	return err
}

func (p *Postgres) Create(ctx context.Context, s *session.Session) error {
	if s == nil || s.ID == "" {
		return session.ErrInvalidRequest
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := p.Pool.Exec(ctx, `INSERT INTO game_sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,1,$11)`,
		s.ID, s.Name,
		textParam(s.Slots[0].Player), textParam(s.Slots[0].ClientID), s.Slots[0].Connected, s.Slots[0].EverConnected,
		textParam(s.Slots[1].Player), textParam(s.Slots[1].ClientID), s.Slots[1].Connected, s.Slots[1].EverConnected,
		s.CreatedAt,
	)
	if err != nil {
		return err
	}
	s.Version = 1
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*session.Session, error) {
	row := p.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return s, nil
}

func (p *Postgres) QueryByField(ctx context.Context, field, value string) ([]*session.Session, error) {
	col, ok := queryColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", session.ErrInvalidRequest, field)
	}
	return p.query(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE `+col+` = $1 ORDER BY created_at, id`, value)
}

func (p *Postgres) List(ctx context.Context) ([]*session.Session, error) {
	return p.query(ctx, `SELECT `+sessionColumns+` FROM game_sessions ORDER BY created_at, id`)
}

func (p *Postgres) Save(ctx context.Context, s *session.Session) error {
	tag, err := p.Pool.Exec(ctx, `UPDATE game_sessions SET
		slot0_player = $3, slot0_client_id = $4, slot0_connected = $5, slot0_ever_connected = $6,
		slot1_player = $7, slot1_client_id = $8, slot1_connected = $9, slot1_ever_connected = $10,
		version = version + 1
		WHERE id = $1 AND version = $2`,
		s.ID, s.Version,
		textParam(s.Slots[0].Player), textParam(s.Slots[0].ClientID), s.Slots[0].Connected, s.Slots[0].EverConnected,
		textParam(s.Slots[1].Player), textParam(s.Slots[1].ClientID), s.Slots[1].Connected, s.Slots[1].EverConnected,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return p.missOrConflict(ctx, s.ID)
	}
	s.Version++
	return nil
}

func (p *Postgres) Delete(ctx context.Context, s *session.Session) error {
	tag, err := p.Pool.Exec(ctx, `DELETE FROM game_sessions WHERE id = $1 AND version = $2`, s.ID, s.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return p.missOrConflict(ctx, s.ID)
	}
	return nil
}

// missOrConflict explains a zero-row conditional write.
func (p *Postgres) missOrConflict(ctx context.Context, id string) error {
	var version int64
	err := p.Pool.QueryRow(ctx, `SELECT version FROM game_sessions WHERE id = $1`, id).Scan(&version)
	if err != nil {
		return mapNotFound(err)
	}
	return session.ErrConflict
}

func (p *Postgres) query(ctx context.Context, sql string, args ...any) ([]*session.Session, error) {
	rows, err := p.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*session.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var (
		s              session.Session
		p0, c0, p1, c1 pgtype.Text
		createdAt      pgtype.Timestamptz
	)
	err := row.Scan(
		&s.ID, &s.Name,
		&p0, &c0, &s.Slots[0].Connected, &s.Slots[0].EverConnected,
		&p1, &c1, &s.Slots[1].Connected, &s.Slots[1].EverConnected,
		&s.Version, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	s.Slots[0].Player, s.Slots[0].ClientID = textVal(p0), textVal(c0)
	s.Slots[1].Player, s.Slots[1].ClientID = textVal(p1), textVal(c1)
	s.CreatedAt = createdAt.Time.UTC()
	return &s, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return session.ErrNotFound
	}
	return err
}

func textParam(v string) pgtype.Text {
	if v == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: v, Valid: true}
}

func textVal(v pgtype.Text) string {
	if !v.Valid {
		return ""
	}
	return v.String
}
