package aiassist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Gateway completa un par de prompts.
type Gateway interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// GatewayConfig configura el cliente OpenAI-compatible.
type GatewayConfig struct {
	BaseURL    string // ej: https://ai.gateway.lovable.dev/v1
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GatewayClient habla con un endpoint chat/completions.
type GatewayClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewGatewayClient valida la config.
func NewGatewayClient(cfg GatewayConfig) (*GatewayClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("aiassist: api key is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("aiassist: gateway url is required")
	}
	if cfg.Model == "" {
		cfg.Model = "google/gemini-2.5-flash"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  hc,
	}, nil
}

// Complete retorna el contenido de la primera choice ("" si no hay).
// Un status no-2xx se devuelve como *StatusError.
func (c *GatewayClient) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}
