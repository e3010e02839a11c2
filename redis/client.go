package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/NextMind-AI/crm-go/messages"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const historyPrefix = "chat_history:"

// Client reads and writes conversation history kept as Redis lists, one list
// per conversation key, oldest entry first.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

type ChatMessage struct {
	ID          string    `json:"id,omitempty"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	MessageUUID string    `json:"message_uuid,omitempty"`
}

func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	client := NewFromRedis(rdb)

	if err := client.Ping(ctx); err != nil {
		log.Error().Err(err).
			Str("addr", addr).
			Int("db", db).
			Msg("Redis connection failed")
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().
		Str("addr", addr).
		Int("db", db).
		Msg("Redis connected successfully")

	return client, nil
}

func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// WithTTL makes AppendMessage refresh the list expiry. Zero keeps history
// forever.
func (c *Client) WithTTL(ttl time.Duration) *Client {
	c.ttl = ttl
	return c
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// FetchPage returns page of the conversation history, page 1 being the newest
// limit entries. Records within the page are oldest first.
func (c *Client) FetchPage(ctx context.Context, clinicID, key string, page, limit int) (messages.Page, error) {
	listKey := historyKey(key)

	total, err := c.rdb.LLen(ctx, listKey).Result()
	if err != nil {
		return messages.Page{}, fmt.Errorf("failed to count chat history: %w", err)
	}

	result := messages.Page{
		Shape: messages.ShapeEnvelope,
		Pagination: messages.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      int(total),
			TotalPages: totalPages(int(total), limit),
		},
	}

	start, stop, ok := pageBounds(int(total), page, limit)
	if !ok {
		return result, nil
	}

	entries, err := c.rdb.LRange(ctx, listKey, int64(start), int64(stop)).Result()
	if err != nil {
		return messages.Page{}, fmt.Errorf("failed to read chat history: %w", err)
	}

	result.Records = decodeEntries(key, start, entries)
	return result, nil
}

// decodeEntries converts list entries read from index start onwards.
func decodeEntries(key string, start int, entries []string) []messages.RawRecord {
	records := make([]messages.RawRecord, 0, len(entries))
	for i, entry := range entries {
		var msg ChatMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			log.Warn().Err(err).Str("conversation_key", key).Int("index", start+i).Msg("Skipping undecodable chat history entry")
			continue
		}
		records = append(records, toRecord(msg, key, start+i))
	}
	return records
}

func (c *Client) AppendMessage(ctx context.Context, key string, message ChatMessage) error {
	listKey := historyKey(key)

	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	messageJSON, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if err := c.rdb.RPush(ctx, listKey, messageJSON).Err(); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	if c.ttl > 0 {
		if err := c.rdb.Expire(ctx, listKey, c.ttl).Err(); err != nil {
			log.Warn().
				Err(err).
				Str("conversation_key", key).
				Dur("ttl", c.ttl).
				Msg("Failed to refresh chat history expiry")
		}
	}

	return nil
}

func (c *Client) Clear(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, historyKey(key)).Err()
}

// Conversations returns every conversation key that has history.
func (c *Client) Conversations(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, historyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), historyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan conversations: %w", err)
	}
	return keys, nil
}

func historyKey(key string) string {
	return historyPrefix + key
}

// pageBounds maps a newest-first page onto inclusive list indexes.
func pageBounds(total, page, limit int) (start, stop int, ok bool) {
	if limit <= 0 || page < 1 {
		return 0, 0, false
	}
	end := total - (page-1)*limit
	if end <= 0 {
		return 0, 0, false
	}
	start = end - limit
	if start < 0 {
		start = 0
	}
	return start, end - 1, true
}

func totalPages(total, limit int) int {
	if limit <= 0 || total == 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

// toRecord maps a list entry at index onto a raw record. Entries without an
// id are identified by their list position, which never changes because
// history is append-only.
func toRecord(msg ChatMessage, key string, index int) messages.RawRecord {
	id := msg.ID
	if id == "" {
		id = msg.MessageUUID
	}
	if id == "" {
		id = fmt.Sprintf("%s#%d", key, index)
	}

	sender := msg.Role
	if sender == "assistant" {
		sender = "clinic"
	}

	var ts string
	if !msg.Timestamp.IsZero() {
		ts = msg.Timestamp.UTC().Format(time.RFC3339)
	}

	return messages.RawRecord{
		ID:        messages.RecordID(id),
		ChatID:    key,
		Content:   msg.Content,
		Sender:    sender,
		Timestamp: ts,
		CreatedAt: ts,
	}
}
