package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Provider is the interface for reasoning-service backends.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	IsConfigured() bool
}

// Client talks to an OpenRouter-compatible chat-completions endpoint.
type Client struct {
	APIURL string
	Model  string
	apiKey string
	client *http.Client
}

// NewClient creates a reasoning client. The API key is read from the
// environment variable named by apiKeyEnv.
func NewClient(apiURL, model, apiKeyEnv string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		APIURL: apiURL,
		Model:  model,
		apiKey: os.Getenv(apiKeyEnv),
		client: &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Generate sends a single-user-message prompt and returns the response
// text. Any non-2xx status is an error.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("reasoning API key not configured")
	}

	body := map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reasoning API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("reasoning API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in reasoning response")
	}

	return result.Choices[0].Message.Content, nil
}
