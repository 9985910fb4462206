package computer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExecutePostsArgumentsAndDecodesResult(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]any{"output": "clicked"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second, zap.NewNop())
	result, err := client.Execute(context.Background(), map[string]any{
		"action":     ActionClick,
		"coordinate": []int{10, 20},
	})
	require.NoError(t, err)

	assert.Equal(t, "clicked", result.Text)
	assert.Equal(t, "click", received["action"])
	assert.Equal(t, []any{float64(10), float64(20)}, received["coordinate"])
}

func TestExecuteServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "no display attached"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second, zap.NewNop())
	_, err := client.Execute(context.Background(), map[string]any{"action": ActionKey})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display attached")
}

func TestExecuteNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second, zap.NewNop())
	_, err := client.Execute(context.Background(), map[string]any{"action": ActionWait})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

type scriptedClient struct {
	result *Result
	err    error
}

func (s *scriptedClient) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	return s.result, s.err
}

func TestScreenshotEnforcesPNG(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	data, err := Screenshot(context.Background(), &scriptedClient{
		result: &Result{Data: png, MIMEType: "image/png"},
	})
	require.NoError(t, err)
	assert.Equal(t, png, data)

	_, err = Screenshot(context.Background(), &scriptedClient{
		result: &Result{Data: png, MIMEType: "image/jpeg"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image/png")

	_, err = Screenshot(context.Background(), &scriptedClient{
		result: &Result{MIMEType: "image/png"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no inline data")
}

func TestExecuteContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewHTTPClient(server.URL, 5*time.Second, zap.NewNop())
	_, err := client.Execute(ctx, map[string]any{"action": ActionWait})
	require.Error(t, err)
}
