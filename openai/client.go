package openai

import (
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client used to summarize conversations.
type Client struct {
	client *openai.Client
	model  openai.ChatModel
}

// NewClient creates a new OpenAI client wrapper with the specified API key and HTTP client.
// Extra request options (base URL, retries) are passed through to the SDK.
func NewClient(apiKey string, httpClient http.Client, opts ...option.RequestOption) Client {
	requestOptions := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&httpClient),
	}, opts...)

	client := openai.NewClient(requestOptions...)

	return Client{
		client: &client,
		model:  openai.ChatModelGPT4_1Mini,
	}
}
