package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
	"github.com/jackc/pgx/v5"
)

const threadColumns = `t.id, t.bounty_id, t.participant_a, t.participant_b, t.last_message_at, t.created_at`

// FindOrCreateThread returns the thread between a and b about bountyID, creating it if needed.
func (s *Store) FindOrCreateThread(ctx context.Context, bountyID *int64, a, b int64) (models.MessageThread, error) {
	low, high := storage.OrderedPair(a, b)
	const find = `SELECT ` + threadColumns + ` FROM message_threads t
		WHERE COALESCE(t.bounty_id, 0) = COALESCE($1, 0) AND t.participant_a = $2 AND t.participant_b = $3`
	thread, err := scanThread(s.pool.QueryRow(ctx, find, bountyID, low, high), false)
	if err == nil || !errors.Is(err, storage.ErrNotFound) {
		return thread, err
	}

	const insert = `INSERT INTO message_threads AS t (bounty_id, participant_a, participant_b)
		VALUES ($1, $2, $3)
		RETURNING ` + threadColumns
	thread, err = scanThread(s.pool.QueryRow(ctx, insert, bountyID, low, high), false)
	if errors.Is(err, storage.ErrAlreadyExists) {
		// lost a race with the other participant
		return scanThread(s.pool.QueryRow(ctx, find, bountyID, low, high), false)
	}
	return thread, err
}

// GetThread fetches a thread by id.
func (s *Store) GetThread(ctx context.Context, id int64) (models.MessageThread, error) {
	return scanThread(s.pool.QueryRow(ctx, `SELECT `+threadColumns+` FROM message_threads t WHERE t.id = $1`, id), false)
}

// ListThreads returns the user's threads with their unread counts, most recent activity first.
func (s *Store) ListThreads(ctx context.Context, userID int64) ([]models.MessageThread, error) {
	const query = `SELECT ` + threadColumns + `,
		(SELECT COUNT(*) FROM messages m WHERE m.thread_id = t.id AND m.sender_id <> $1 AND m.read_at IS NULL)
		FROM message_threads t
		WHERE t.participant_a = $1 OR t.participant_b = $1
		ORDER BY COALESCE(t.last_message_at, t.created_at) DESC`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.MessageThread{}
	for rows.Next() {
		t, err := scanThread(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateMessage appends a message and bumps the thread's activity time.
func (s *Store) CreateMessage(ctx context.Context, m models.Message) (models.Message, error) {
	var out models.Message
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO messages (thread_id, sender_id, body) VALUES ($1, $2, $3)
			RETURNING id, thread_id, sender_id, body, read_at, created_at`, m.ThreadID, m.SenderID, m.Body)
		var err error
		if out, err = scanMessage(row); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE message_threads SET last_message_at = $2 WHERE id = $1`, m.ThreadID, out.CreatedAt)
		return err
	})
	return out, err
}

// ListMessages returns up to limit messages older than beforeID (0 = newest), oldest first.
func (s *Store) ListMessages(ctx context.Context, threadID int64, beforeID int64, limit int) ([]models.Message, error) {
	const query = `SELECT id, thread_id, sender_id, body, read_at, created_at FROM (
		SELECT * FROM messages
		WHERE thread_id = $1 AND ($2 = 0 OR id < $2)
		ORDER BY id DESC LIMIT $3
	) recent ORDER BY id`
	rows, err := s.pool.Query(ctx, query, threadID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkThreadRead marks messages sent to readerID as read and returns how many changed.
func (s *Store) MarkThreadRead(ctx context.Context, threadID, readerID int64, at time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET read_at = $3
		WHERE thread_id = $1 AND sender_id <> $2 AND read_at IS NULL`, threadID, readerID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UnreadCount counts unread messages addressed to userID across all threads.
func (s *Store) UnreadCount(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM messages m
		JOIN message_threads t ON t.id = m.thread_id
		WHERE (t.participant_a = $1 OR t.participant_b = $1) AND m.sender_id <> $1 AND m.read_at IS NULL`
	var n int
	err := s.pool.QueryRow(ctx, query, userID).Scan(&n)
	return n, err
}

func scanThread(row pgx.Row, withUnread bool) (models.MessageThread, error) {
	var t models.MessageThread
	dest := []any{&t.ID, &t.BountyID, &t.ParticipantA, &t.ParticipantB, &t.LastMessageAt, &t.CreatedAt}
	if withUnread {
		dest = append(dest, &t.UnreadCount)
	}
	if err := row.Scan(dest...); err != nil {
		return models.MessageThread{}, mapErr(err)
	}
	return t, nil
}

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.ReadAt, &m.CreatedAt); err != nil {
		return models.Message{}, mapErr(err)
	}
	return m, nil
}
