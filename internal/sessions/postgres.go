package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/haasonsaas/lattice/pkg/api"
)

// PostgresStore is the durable relational backend. Message order is the
// BIGSERIAL seq column; deleting a session cascades to its messages via
// the foreign key, while memories live in an unrelated table.
type PostgresStore struct {
	db *sql.DB

	getOrCreateStmt  *sql.Stmt
	touchSessionStmt *sql.Stmt
	insertMsgStmt    *sql.Stmt
	countMsgsStmt    *sql.Stmt
	getMsgsStmt      *sql.Stmt
	deleteSessStmt   *sql.Stmt
	saveMemStmt      *sql.Stmt
	getMemStmt       *sql.Stmt
	scanMemStmt      *sql.Stmt
	deleteMemStmt    *sql.Stmt
	clearMemStmt     *sql.Stmt
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq        BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	payload    JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_session_seq_idx ON messages (session_id, seq);

CREATE TABLE IF NOT EXISTS memories (
	user_id    TEXT NOT NULL,
	key        TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, key, session_id)
);
`

// NewPostgresStore connects, ensures the schema, and prepares the
// statements every operation uses.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s, err := newPostgresStoreWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.prepare(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) prepare() error {
	stmts := []struct {
		target **sql.Stmt
		query  string
	}{
		{&s.getOrCreateStmt, `
			INSERT INTO sessions (session_id, user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (session_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
			RETURNING session_id, user_id, created_at, updated_at`},
		{&s.touchSessionStmt, `
			UPDATE sessions SET updated_at = $2 WHERE session_id = $1`},
		{&s.insertMsgStmt, `
			INSERT INTO messages (session_id, payload) VALUES ($1, $2)`},
		{&s.countMsgsStmt, `
			SELECT COUNT(*) FROM messages WHERE session_id = $1`},
		{&s.getMsgsStmt, `
			SELECT payload FROM messages WHERE session_id = $1
			ORDER BY seq OFFSET $2 LIMIT $3`},
		{&s.deleteSessStmt, `
			DELETE FROM sessions WHERE session_id = $1`},
		{&s.saveMemStmt, `
			INSERT INTO memories (user_id, key, session_id, value, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, key, session_id)
			DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`},
		{&s.getMemStmt, `
			SELECT key, value FROM memories
			WHERE user_id = $1 AND key = $2 AND session_id = $3`},
		{&s.scanMemStmt, `
			SELECT key, value FROM memories
			WHERE user_id = $1 AND session_id = $2`},
		{&s.deleteMemStmt, `
			DELETE FROM memories WHERE user_id = $1 AND key = $2 AND session_id = $3`},
		{&s.clearMemStmt, `
			DELETE FROM memories WHERE user_id = $1`},
	}
	for _, st := range stmts {
		prepared, err := s.db.Prepare(st.query)
		if err != nil {
			return fmt.Errorf("prepare %q: %w", st.query, err)
		}
		*st.target = prepared
	}
	return nil
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, userID, sessionID string) (*api.Session, error) {
	now := time.Now().UTC()
	if sessionID == "" {
		sessionID = fmt.Sprintf("session_%s_%d", userID, now.Unix())
	}

	var sess api.Session
	err := s.getOrCreateStmt.QueryRowContext(ctx, sessionID, userID, now).
		Scan(&sess.SessionID, &sess.UserID, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) AddMessages(ctx context.Context, sessionID string, msgs []api.ChatMessage) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.StmtContext(ctx, s.touchSessionStmt).ExecContext(ctx, sessionID, now)
	if err != nil {
		return 0, fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	insert := tx.StmtContext(ctx, s.insertMsgStmt)
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		payload, err := json.Marshal(m)
		if err != nil {
			return 0, fmt.Errorf("encode message: %w", err)
		}
		if _, err := insert.ExecContext(ctx, sessionID, payload); err != nil {
			return 0, fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(msgs), nil
}

func (s *PostgresStore) GetMessages(ctx context.Context, sessionID string, limit, offset int) ([]api.ChatMessage, int, error) {
	var total int
	if err := s.countMsgsStmt.QueryRowContext(ctx, sessionID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	if offset < 0 {
		offset = 0
	}
	// LIMIT NULL means "no limit" in postgres.
	var sqlLimit any
	if limit > 0 {
		sqlLimit = limit
	}

	rows, err := s.getMsgsStmt.QueryContext(ctx, sessionID, offset, sqlLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]api.ChatMessage, 0, total)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		var m api.ChatMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, 0, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, total, rows.Err()
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	res, err := s.deleteSessStmt.ExecContext(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *PostgresStore) SaveMemory(ctx context.Context, userID, key string, value json.RawMessage, sessionID string) error {
	_, err := s.saveMemStmt.ExecContext(ctx, userID, key, sessionID, []byte(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMemory(ctx context.Context, userID, key, sessionID string) (map[string]json.RawMessage, error) {
	var rows *sql.Rows
	var err error
	if key != "" {
		rows, err = s.getMemStmt.QueryContext(ctx, userID, key, sessionID)
	} else {
		rows, err = s.scanMemStmt.QueryContext(ctx, userID, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out[k] = json.RawMessage(v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteMemory(ctx context.Context, userID, key, sessionID string) (bool, error) {
	res, err := s.deleteMemStmt.ExecContext(ctx, userID, key, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *PostgresStore) ClearUserMemory(ctx context.Context, userID string) (int, error) {
	res, err := s.clearMemStmt.ExecContext(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear user memory: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close releases prepared statements and the connection pool.
func (s *PostgresStore) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.getOrCreateStmt, s.touchSessionStmt, s.insertMsgStmt,
		s.countMsgsStmt, s.getMsgsStmt, s.deleteSessStmt,
		s.saveMemStmt, s.getMemStmt, s.scanMemStmt,
		s.deleteMemStmt, s.clearMemStmt,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}

// DB exposes the underlying pool for health checks.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}
