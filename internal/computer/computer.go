// Package computer reaches the external OS-automation service that owns the
// real mouse, keyboard, and screen. The service is a global single-user
// resource; at most one active session should drive one controlled machine.
package computer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ToolName is the function name grounded calls execute under.
const ToolName = ".computer"

// Actions accepted by the service. Screenshot returns inline PNG data; all
// other actions return a text output.
const (
	ActionClick       = "click"
	ActionType        = "type"
	ActionDragAndDrop = "drag_and_drop"
	ActionScroll      = "scroll"
	ActionKey         = "key"
	ActionWait        = "wait"
	ActionScreenshot  = "screenshot"
)

// Result is the outcome of one executed action.
type Result struct {
	// Text is the service's output for non-screenshot actions.
	Text string `json:"output,omitempty"`
	// Data and MIMEType carry inline screenshot bytes.
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// Client executes .computer actions. Args is the raw argument object of a
// grounded call (always including an "action" key).
type Client interface {
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// HTTPClient is the production Client: it posts the argument object as JSON
// to the automation service and decodes the enveloped result.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// NewHTTPClient builds a client for the automation endpoint.
func NewHTTPClient(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      logger.Named("computer"),
	}
}

type wireResult struct {
	Output   string `json:"output,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Execute posts one action and waits for its result.
func (c *HTTPClient) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode computer arguments: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build computer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	action, _ := args["action"].(string)
	c.log.Debug("Executing computer action", zap.String("action", action))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("computer request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read computer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("computer service returned %s: %s", resp.Status, data)
	}

	var wire wireResult
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode computer response: %w", err)
	}
	if wire.Error != "" {
		return nil, fmt.Errorf("computer action %s failed: %s", action, wire.Error)
	}
	return &Result{Text: wire.Output, Data: wire.Data, MIMEType: wire.MIMEType}, nil
}

// Screenshot captures the screen and enforces the PNG-only contract: any
// other mimeType is fatal for the turn.
func Screenshot(ctx context.Context, client Client) ([]byte, error) {
	result, err := client.Execute(ctx, map[string]any{"action": ActionScreenshot})
	if err != nil {
		return nil, err
	}
	if result.MIMEType != "image/png" {
		return nil, fmt.Errorf("screenshot returned unsupported mimeType %q, want image/png", result.MIMEType)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("screenshot returned no inline data")
	}
	return result.Data, nil
}

var _ Client = (*HTTPClient)(nil)
