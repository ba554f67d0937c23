package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonukumar047/email-assistant/triagecore/logging"
)

func fakeCompletionServer(t *testing.T, handler func(req openai.ChatCompletionRequest) (string, int)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		content, status := handler(req)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestNewOpenAIGeneratorRequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator("", "", 0, logging.Nop())
	assert.Error(t, err)
}

func TestGenerateSendsSystemAndUserMessages(t *testing.T) {
	server := fakeCompletionServer(t, func(req openai.ChatCompletionRequest) (string, int) {
		require.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Equal(t, "classify this", req.Messages[0].Content)
		assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
		assert.Equal(t, "Email: hello", req.Messages[1].Content)
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, float32(0.3), req.Temperature)
		assert.Equal(t, 1000, req.MaxTokens)
		return "complaint", http.StatusOK
	})
	defer server.Close()

	gen, err := NewOpenAIGenerator("test-key", server.URL, 0, logging.Nop())
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(),
		Request{System: "classify this", User: "Email: hello"},
		Params{Model: "test-model", Temperature: 0.3, MaxTokens: 1000},
	)
	require.NoError(t, err)
	assert.Equal(t, "complaint", text)
}

func TestGenerateServerError(t *testing.T) {
	server := fakeCompletionServer(t, func(req openai.ChatCompletionRequest) (string, int) {
		return "", http.StatusInternalServerError
	})
	defer server.Close()

	gen, err := NewOpenAIGenerator("test-key", server.URL, 0, logging.Nop())
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Request{System: "s", User: "u"}, Params{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion failed")
}

func TestGenerateTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator("test-key", server.URL, 30*time.Millisecond, logging.Nop())
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Request{System: "s", User: "u"}, Params{Model: "m"})
	assert.Error(t, err)
}
