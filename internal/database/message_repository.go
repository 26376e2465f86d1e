package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ChafterInnovations/Kutter/internal/domain"
	"github.com/ChafterInnovations/Kutter/internal/metrics"
)

const messageColumns = `id, author_id, author_name, body, timestamp`

// pgForeignKeyViolation is the SQLSTATE for a failed referential check.
const pgForeignKeyViolation = "23503"

// MessageRepo implements domain.MessageStore backed by PostgreSQL. The
// database assigns ids and timestamps, making the insert the
// linearization point for the global message order.
type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Append(ctx context.Context, authorID, authorName, body string) (*domain.ChatMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, domain.ErrEmptyBody
	}

	var msg domain.ChatMessage
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (author_id, author_name, body)
		VALUES ($1, $2, $3)
		RETURNING `+messageColumns,
		authorID, authorName, body,
	).Scan(&msg.ID, &msg.AuthorID, &msg.AuthorName, &msg.Body, &msg.Timestamp)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, domain.ErrAuthorNotRegistered
		}
		metrics.StoreErrorsTotal.WithLabelValues("append").Inc()
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	metrics.MessagesAppendedTotal.Inc()
	return &msg, nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE id = $1`, id,
	).Scan(&msg.ID, &msg.AuthorID, &msg.AuthorName, &msg.Body, &msg.Timestamp)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	return &msg, nil
}

func (r *MessageRepo) DeleteByID(ctx context.Context, id int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("failed to delete message: %w", err)
	}

	deleted := tag.RowsAffected() > 0
	if deleted {
		metrics.MessagesDeletedTotal.Inc()
	}
	return deleted, nil
}

func (r *MessageRepo) ListAll(ctx context.Context) ([]domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages ORDER BY timestamp DESC`)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.AuthorID, &msg.AuthorName, &msg.Body, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}
