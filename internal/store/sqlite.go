package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
		inMemory = true
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS bounces (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            source TEXT NOT NULL,
            recipient TEXT NOT NULL,
            code TEXT NOT NULL,
            reason TEXT NOT NULL,
            subject TEXT NOT NULL,
            message_id TEXT NOT NULL,
            sent_at INTEGER NOT NULL,
            raw_hash TEXT NOT NULL UNIQUE,
            raw_size INTEGER NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_bounces_code ON bounces(code);`,
		`CREATE INDEX IF NOT EXISTS idx_bounces_recipient ON bounces(recipient);`,
		`CREATE INDEX IF NOT EXISTS idx_bounces_created ON bounces(created_at, seq);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// InsertBounce stores b unless a bounce with the same raw hash exists. It reports
// whether a row was written.
func (s *Store) InsertBounce(ctx context.Context, b Bounce) (bool, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO bounces
        (id, source, recipient, code, reason, subject, message_id, sent_at, raw_hash, raw_size, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(raw_hash) DO NOTHING;`,
		b.ID,
		b.Source,
		b.Recipient,
		b.Code,
		b.Reason,
		b.Subject,
		b.MessageID,
		unixOrZero(b.SentAt),
		b.RawHash,
		b.RawSize,
		b.CreatedAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("insert bounce: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert bounce: %w", err)
	}
	return rows > 0, nil
}

func whereClause(filter Filter) (string, []any) {
	var conditions []string
	var args []any
	if filter.Code != "" {
		conditions = append(conditions, "code = ?")
		args = append(args, filter.Code)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		term := "%" + search + "%"
		conditions = append(conditions, "(recipient LIKE ? OR reason LIKE ? OR subject LIKE ?)")
		args = append(args, term, term, term)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

const bounceColumns = `id, source, recipient, code, reason, subject, message_id, sent_at, raw_hash, raw_size, created_at`

func (s *Store) ListBounces(ctx context.Context, filter Filter, sort string, offset, limit int32) ([]Bounce, int32, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	whereQuery, args := whereClause(filter)

	var totalCount int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM bounces"+whereQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("count bounces: %w", err)
	}
	if totalCount > int64(^uint32(0)>>1) {
		totalCount = int64(^uint32(0) >> 1)
	}

	orderBy := " ORDER BY seq DESC"
	switch sort {
	case "oldest", "asc":
		orderBy = " ORDER BY seq ASC"
	}

	listArgs := append([]any{}, args...)
	listArgs = append(listArgs, limit, offset)
	bounces, err := s.queryBounces(ctx, "SELECT "+bounceColumns+" FROM bounces"+whereQuery+orderBy+" LIMIT ? OFFSET ?", listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bounces: %w", err)
	}
	return bounces, int32(totalCount), nil
}

// AllBounces returns every matching bounce in arrival order.
func (s *Store) AllBounces(ctx context.Context, filter Filter) ([]Bounce, error) {
	whereQuery, args := whereClause(filter)
	bounces, err := s.queryBounces(ctx, "SELECT "+bounceColumns+" FROM bounces"+whereQuery+" ORDER BY seq ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("all bounces: %w", err)
	}
	return bounces, nil
}

func (s *Store) GetBounce(ctx context.Context, id string) (Bounce, error) {
	bounces, err := s.queryBounces(ctx, "SELECT "+bounceColumns+" FROM bounces WHERE id = ?", id)
	if err != nil {
		return Bounce{}, fmt.Errorf("get bounce: %w", err)
	}
	if len(bounces) == 0 {
		return Bounce{}, sql.ErrNoRows
	}
	return bounces[0], nil
}

// GetBounceByHash finds the bounce stored for a raw message hash.
func (s *Store) GetBounceByHash(ctx context.Context, rawHash string) (Bounce, error) {
	bounces, err := s.queryBounces(ctx, "SELECT "+bounceColumns+" FROM bounces WHERE raw_hash = ?", rawHash)
	if err != nil {
		return Bounce{}, fmt.Errorf("get bounce by hash: %w", err)
	}
	if len(bounces) == 0 {
		return Bounce{}, sql.ErrNoRows
	}
	return bounces[0], nil
}

func (s *Store) DeleteBounce(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bounces WHERE id = ?;`, id)
	if err != nil {
		return false, fmt.Errorf("delete bounce: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete bounce: %w", err)
	}
	return rows > 0, nil
}

// CountByReason groups stored bounces by (code, reason), largest group first.
func (s *Store) CountByReason(ctx context.Context) ([]ReasonCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, reason, COUNT(1) AS total
        FROM bounces
        GROUP BY code, reason
        ORDER BY total DESC, code ASC, reason ASC;`)
	if err != nil {
		return nil, fmt.Errorf("count by reason: %w", err)
	}
	defer rows.Close()

	var counts []ReasonCount
	for rows.Next() {
		var c ReasonCount
		if err := rows.Scan(&c.Code, &c.Reason, &c.Count); err != nil {
			return nil, fmt.Errorf("count by reason: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count by reason: %w", err)
	}
	return counts, nil
}

func (s *Store) queryBounces(ctx context.Context, query string, args ...any) ([]Bounce, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bounces []Bounce
	for rows.Next() {
		var b Bounce
		var sentAt, createdAt int64
		if err := rows.Scan(
			&b.ID,
			&b.Source,
			&b.Recipient,
			&b.Code,
			&b.Reason,
			&b.Subject,
			&b.MessageID,
			&sentAt,
			&b.RawHash,
			&b.RawSize,
			&createdAt,
		); err != nil {
			return nil, err
		}
		if sentAt != 0 {
			b.SentAt = time.Unix(sentAt, 0)
		}
		b.CreatedAt = time.Unix(createdAt, 0)
		bounces = append(bounces, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bounces, nil
}

// unixOrZero stores a missing Date header as 0.
func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// IsNotFound reports a lookup that matched no bounce.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
