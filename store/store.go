package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NextMind-AI/crm-go/messages"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ChatMessage is a stored chat message row.
type ChatMessage struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	ChatID     string    `gorm:"not null;index:idx_chat_messages_chat_sent,priority:1" json:"chat_id"`
	ClinicID   string    `gorm:"index" json:"clinic_id"`
	CustomerID string    `json:"customer_id"`
	Content    string    `gorm:"type:text" json:"content"`
	Sender     string    `gorm:"size:32" json:"sender"`
	SentAt     time.Time `gorm:"column:sent_at;index:idx_chat_messages_chat_sent,priority:2" json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// Store serves conversation pages from the database.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres.
func Open(databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Msg("Database connection established successfully")
	return New(db)
}

func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("store: db is required")
	}
	return &Store{db: db}, nil
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&ChatMessage{}); err != nil {
		return fmt.Errorf("failed to migrate chat messages: %w", err)
	}
	return nil
}

// FetchPage returns page of a conversation, page 1 being the newest limit
// messages. Rows within the page are oldest first.
func (s *Store) FetchPage(ctx context.Context, clinicID, key string, page, limit int) (messages.Page, error) {
	if page < 1 || limit <= 0 {
		return messages.Page{}, fmt.Errorf("invalid page %d or limit %d", page, limit)
	}

	query := s.db.WithContext(ctx).
		Model(&ChatMessage{}).
		Where("chat_id = ? AND clinic_id = ?", key, clinicID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return messages.Page{}, fmt.Errorf("failed to count messages: %w", err)
	}

	var rows []ChatMessage
	err := query.
		Order("sent_at DESC").
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return messages.Page{}, fmt.Errorf("failed to list messages: %w", err)
	}

	records := make([]messages.RawRecord, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		records = append(records, toRecord(rows[i]))
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	if pages == 0 {
		pages = 1
	}

	return messages.Page{
		Records: records,
		Pagination: messages.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      int(total),
			TotalPages: pages,
		},
		Shape: messages.ShapeEnvelope,
	}, nil
}

// Save inserts or replaces a message.
func (s *Store) Save(ctx context.Context, msg *ChatMessage) error {
	if msg.ID == "" || msg.ChatID == "" {
		return errors.New("store: message id and chat id are required")
	}
	clinicID, customerID := messages.SplitConversationKey(msg.ChatID)
	if msg.ClinicID == "" {
		msg.ClinicID = clinicID
	}
	if msg.CustomerID == "" {
		msg.CustomerID = customerID
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Save(msg).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// Conversations lists the distinct chat ids of a clinic.
func (s *Store) Conversations(ctx context.Context, clinicID string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&ChatMessage{}).
		Where("clinic_id = ?", clinicID).
		Distinct().
		Order("chat_id").
		Pluck("chat_id", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return keys, nil
}

func toRecord(row ChatMessage) messages.RawRecord {
	return messages.RawRecord{
		ID:        messages.RecordID(row.ID),
		ChatID:    row.ChatID,
		Content:   row.Content,
		Sender:    row.Sender,
		Timestamp: formatTime(row.SentAt),
		CreatedAt: formatTime(row.CreatedAt),
		UpdatedAt: formatTime(row.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
