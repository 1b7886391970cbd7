package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TranscriptStore archives conversation transcripts to PostgreSQL for
// long-term history. Redis holds the live session; this table is the
// durable copy. All writes are best effort and a nil store is valid.
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore creates a transcript archive store.
func NewTranscriptStore(db *sql.DB) *TranscriptStore {
	if db == nil {
		return nil
	}
	return &TranscriptStore{db: db}
}

// EnsureConversation creates the conversation row if it does not exist yet
// and returns its UUID.
func (s *TranscriptStore) EnsureConversation(ctx context.Context, conversationID, language string) (uuid.UUID, error) {
	if s == nil || s.db == nil {
		return uuid.Nil, nil
	}

	var existingID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE conversation_id = $1`,
		conversationID,
	).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, fmt.Errorf("conversation: failed to check existing: %w", err)
	}

	newID := uuid.New()
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, conversation_id, language, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, newID, conversationID, language, now, now)
	if err != nil {
		// Another process may have created it concurrently.
		if strings.Contains(err.Error(), "duplicate key") {
			return s.EnsureConversation(ctx, conversationID, language)
		}
		return uuid.Nil, fmt.Errorf("conversation: failed to create: %w", err)
	}
	return newID, nil
}

// ArchiveMessage persists one transcript message.
func (s *TranscriptStore) ArchiveMessage(ctx context.Context, conversationID string, msg Message) error {
	if s == nil || s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), conversationID, msg.Role, msg.Content, time.Now())
	if err != nil {
		return fmt.Errorf("conversation: failed to archive message: %w", err)
	}
	return nil
}

// Transcript returns the archived messages for a conversation in order.
func (s *TranscriptStore) Transcript(ctx context.Context, conversationID string) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to load transcript: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("conversation: failed to scan transcript row: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: transcript rows: %w", err)
	}
	return msgs, nil
}
