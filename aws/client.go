package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NextMind-AI/crm-go/messages"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Transcript is the document written for an exported conversation.
type Transcript struct {
	ConversationKey string             `json:"conversationKey"`
	ExportedAt      time.Time          `json:"exportedAt"`
	MessageCount    int                `json:"messageCount"`
	Messages        []messages.Message `json:"messages"`
}

// Exporter uploads conversation transcripts to S3.
type Exporter struct {
	bucket   string
	region   string
	uploader s3manageriface.UploaderAPI
	now      func() time.Time
}

func NewExporter(region, bucket string) (*Exporter, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	log.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("AWS session created successfully")

	return NewExporterWithUploader(region, bucket, s3manager.NewUploader(sess))
}

func NewExporterWithUploader(region, bucket string, uploader s3manageriface.UploaderAPI) (*Exporter, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if uploader == nil {
		return nil, errors.New("s3 uploader is required")
	}
	return &Exporter{
		bucket:   bucket,
		region:   region,
		uploader: uploader,
		now:      time.Now,
	}, nil
}

// ExportTranscript writes msgs as JSON and returns the object URL.
func (e *Exporter) ExportTranscript(ctx context.Context, conversationKey string, msgs []messages.Message) (string, error) {
	doc := Transcript{
		ConversationKey: conversationKey,
		ExportedAt:      e.now().UTC(),
		MessageCount:    len(msgs),
		Messages:        msgs,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode transcript: %w", err)
	}

	key := objectKey(conversationKey)

	log.Info().
		Str("bucket", e.bucket).
		Str("key", key).
		Int("content_size", len(body)).
		Msg("Starting transcript upload")

	result, err := e.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("bucket", e.bucket).
			Str("key", key).
			Msg("Transcript upload failed")
		return "", fmt.Errorf("failed to upload transcript to S3: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", e.bucket, e.region, key)
	if result != nil && result.Location != "" {
		url = result.Location
	}

	log.Info().
		Str("s3_url", url).
		Str("conversation_key", conversationKey).
		Msg("Transcript uploaded to S3 successfully")

	return url, nil
}

func objectKey(conversationKey string) string {
	safe := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(conversationKey)
	return fmt.Sprintf("transcripts/%s/%s.json", safe, uuid.NewString())
}
