package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NextMind-AI/crm-go/messages"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(t *testing.T, content string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1717000000,
		"model":   "gpt-4.1-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
		}},
	})
	require.NoError(t, err)
	return string(body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", http.Client{}, option.WithBaseURL(srv.URL+"/v1/"), option.WithMaxRetries(0))
}

func TestSummarize(t *testing.T) {
	var request map[string]any
	reply := completionBody(t, `{"summary":"Paciente quer marcar consulta.","topics":["agendamento"],"needs_follow_up":true}`)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &request))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	})

	msgs := []messages.Message{
		{ID: "1", Sender: "user", Content: "Quero marcar uma consulta", Timestamp: "2025-01-01T10:00:00Z"},
		{ID: "2", Sender: "clinic", Content: "Claro! Qual dia?", Timestamp: "2025-01-01T10:01:00Z"},
	}

	summary, err := client.Summarize(context.Background(), "clinic-1:5511", msgs)
	require.NoError(t, err)
	assert.Equal(t, "Paciente quer marcar consulta.", summary.Summary)
	assert.Equal(t, []string{"agendamento"}, summary.Topics)
	assert.True(t, summary.NeedsFollowUp)

	format, ok := request["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
}

func TestSummarizeEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.Summarize(context.Background(), "k", nil)
	require.ErrorIs(t, err, ErrEmptyConversation)
}

func TestSummarizeUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})
	_, err := client.Summarize(context.Background(), "k", []messages.Message{{ID: "1", Content: "oi"}})
	require.Error(t, err)
}

func TestBuildTranscript(t *testing.T) {
	msgs := []messages.Message{
		{Sender: "user", Content: " primeira ", Timestamp: "t1"},
		{Sender: "clinic", Content: "segunda", Timestamp: "t2"},
		{Sender: "user", Content: "terceira", Timestamp: "t3"},
	}

	assert.Equal(t, "[t1] Paciente: primeira\n[t2] Clínica: segunda\n[t3] Paciente: terceira\n", buildTranscript(msgs, 0))
	assert.Equal(t, "[t2] Clínica: segunda\n[t3] Paciente: terceira\n", buildTranscript(msgs, 2))
}

func TestSummarySchemaIsStrict(t *testing.T) {
	raw, err := json.Marshal(SummaryResponseSchema)
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, false, schema["additionalProperties"])
	assert.ElementsMatch(t, []any{"summary", "topics", "needs_follow_up"}, schema["required"])
}
