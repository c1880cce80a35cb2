package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/meme-generator/internal/config"
	"github.com/aliskhannn/meme-generator/internal/gateway"
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func completionJSON(content string) chatResponse {
	var resp chatResponse
	resp.Choices = make([]struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	}, 1)
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = content

	return resp
}

func testConfig(baseURL string) config.LLM {
	return config.LLM{
		BaseURL: baseURL,
		Model:   "llama3.2:3b",
		Timeout: 2 * time.Second,
	}
}

func TestComplete_Success(t *testing.T) {
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		require.NoError(t, json.NewEncoder(w).Encode(completionJSON("a cat in an office")))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	out, err := client.Complete(context.Background(), []gateway.Message{
		{Role: gateway.RoleSystem, Content: "system prompt"},
		{Role: gateway.RoleUser, Content: "user prompt"},
	})
	require.NoError(t, err)

	assert.Equal(t, "a cat in an office", out)
	assert.Equal(t, "llama3.2:3b", gotBody["model"])

	msgs, ok := gotBody["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, msgs, 2)
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(chatResponse{}))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	_, err := client.Complete(context.Background(), []gateway.Message{{Role: gateway.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, gateway.ErrInvalidResponse)
}

func TestComplete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))

	_, err := client.Complete(context.Background(), []gateway.Message{{Role: gateway.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	client := NewClient(cfg)

	_, err := client.Complete(context.Background(), []gateway.Message{{Role: gateway.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, gateway.ErrTimeout)
}
