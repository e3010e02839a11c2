package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/NextMind-AI/crm-go/messages"
	"github.com/openai/openai-go"
	"github.com/rs/zerolog/log"
)

// MaxTranscriptMessages bounds how much of a conversation is sent for
// summarization; the most recent messages are kept.
const MaxTranscriptMessages = 200

var ErrEmptyConversation = errors.New("conversation has no messages to summarize")

// Summarize asks the model for a structured summary of msgs.
func (c *Client) Summarize(ctx context.Context, conversationKey string, msgs []messages.Message) (Summary, error) {
	if len(msgs) == 0 {
		return Summary{}, ErrEmptyConversation
	}

	transcript := buildTranscript(msgs, MaxTranscriptMessages)

	log.Info().
		Str("conversation_key", conversationKey).
		Int("messages", len(msgs)).
		Int("transcript_size", len(transcript)).
		Msg("Requesting conversation summary")

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(transcript),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: createSchemaParam()},
		},
		Model: c.model,
	})
	if err != nil {
		log.Error().Err(err).Str("conversation_key", conversationKey).Msg("Summary request failed")
		return Summary{}, fmt.Errorf("failed to request summary: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Summary{}, errors.New("summary response has no choices")
	}

	var summary Summary
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &summary); err != nil {
		return Summary{}, fmt.Errorf("failed to decode summary: %w", err)
	}

	return summary, nil
}

func buildTranscript(msgs []messages.Message, max int) string {
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}

	var b strings.Builder
	for _, m := range msgs {
		speaker := "Clínica"
		if m.Sender == messages.DefaultSender {
			speaker = "Paciente"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp, speaker, strings.TrimSpace(m.Content))
	}
	return b.String()
}
