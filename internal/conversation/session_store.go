package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a conversation id has no stored
// session, either because it never existed or because its TTL expired.
var ErrSessionNotFound = errors.New("conversation: session not found")

// SessionStore persists sessions and transcripts between turns.
type SessionStore interface {
	SaveSession(ctx context.Context, sess *Session) error
	LoadSession(ctx context.Context, conversationID string) (*Session, error)
	AppendMessage(ctx context.Context, conversationID string, msg Message) error
	History(ctx context.Context, conversationID string) ([]Message, error)
}

// RedisSessionStore keeps sessions and transcripts in Redis with a rolling
// TTL, so abandoned conversations expire on their own.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(conversationID string) string {
	return fmt.Sprintf("session:%s", conversationID)
}

func historyKey(conversationID string) string {
	return fmt.Sprintf("history:%s", conversationID)
}

func (s *RedisSessionStore) SaveSession(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("conversation: marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ConversationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("conversation: save session: %w", err)
	}
	// Keep the transcript alive as long as the session.
	s.client.Expire(ctx, historyKey(sess.ConversationID), s.ttl)
	return nil
}

func (s *RedisSessionStore) LoadSession(ctx context.Context, conversationID string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("conversation: unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) AppendMessage(ctx context.Context, conversationID string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("conversation: marshal message: %w", err)
	}
	key := historyKey(conversationID)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("conversation: append message: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("conversation: refresh history ttl: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) History(ctx context.Context, conversationID string) ([]Message, error) {
	items, err := s.client.LRange(ctx, historyKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}
	msgs := make([]Message, 0, len(items))
	for _, item := range items {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("conversation: unmarshal message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
