package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NextMind-AI/crm-go/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, body string, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

func TestFetchPageRequest(t *testing.T) {
	var got *http.Request
	srv := newTestServer(t, http.StatusOK, `{"data":[],"pagination":{"page":2,"limit":50,"total":0,"totalPages":2}}`, func(r *http.Request) {
		got = r.Clone(context.Background())
	})

	client, err := NewClient(srv.URL+"/", WithAPIKey("secret"))
	require.NoError(t, err)

	_, err = client.FetchPage(context.Background(), "clinic-1", "clinic-1:5511", 2, 50)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/messages/clinic-1:5511", got.URL.Path)
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "50", got.URL.Query().Get("limit"))
	assert.Equal(t, "clinic-1", got.URL.Query().Get("clinicId"))
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
}

func TestFetchPageShapes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantShape messages.Shape
		wantCount int
	}{
		{"envelope", `{"data":[{"id":"1"},{"id":"2"}],"pagination":{"page":1,"limit":50,"total":2,"totalPages":1}}`, messages.ShapeEnvelope, 2},
		{"legacy", `{"messages":[{"id":"1"}]}`, messages.ShapeLegacy, 1},
		{"bare array", `[{"id":"1"},{"id":"2"},{"id":"3"}]`, messages.ShapeBareArray, 3},
		{"unknown object", `{"result":"ok"}`, messages.ShapeUnknown, 0},
		{"not json", `upstream exploded`, messages.ShapeUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, tt.body, nil)
			client, err := NewClient(srv.URL)
			require.NoError(t, err)

			page, err := client.FetchPage(context.Background(), "c1", "c1:u1", 1, 50)
			require.NoError(t, err)
			assert.Equal(t, tt.wantShape, page.Shape)
			assert.Len(t, page.Records, tt.wantCount)
		})
	}
}

func TestFetchPageStatusError(t *testing.T) {
	srv := newTestServer(t, http.StatusServiceUnavailable, `{"error":"down"}`, nil)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = client.FetchPage(context.Background(), "c1", "c1:u1", 1, 50)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.HTTPStatusCode())
	assert.Contains(t, fetchErr.Body, "down")
}

func TestFetchPageTransportError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `[]`, nil)
	srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = client.FetchPage(context.Background(), "c1", "c1:u1", 1, 50)
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.HTTPStatusCode())
}

func TestFetchPageValidation(t *testing.T) {
	calls := 0
	srv := newTestServer(t, http.StatusOK, `[]`, func(*http.Request) { calls++ })
	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	tests := []struct {
		name     string
		clinicID string
		key      string
		page     int
		limit    int
	}{
		{"empty clinic", "", "c1:u1", 1, 50},
		{"empty key", "c1", " ", 1, 50},
		{"page zero", "c1", "c1:u1", 0, 50},
		{"limit zero", "c1", "c1:u1", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.FetchPage(context.Background(), tt.clinicID, tt.key, tt.page, tt.limit)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Zero(t, calls)
}

func TestFetchPageRateLimitHonoursContext(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `[]`, nil)
	client, err := NewClient(srv.URL, WithRateLimit(0.001, 1))
	require.NoError(t, err)

	_, err = client.FetchPage(context.Background(), "c1", "c1:u1", 1, 50)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.FetchPage(ctx, "c1", "c1:u1", 1, 50)
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
}
