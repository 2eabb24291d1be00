package ai

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

var (
	// ErrUnavailable covers dial, timeout and other transport failures.
	ErrUnavailable = errors.New("completion endpoint unavailable")
	// ErrNoCompletion means the endpoint answered without choices[0].message.content.
	ErrNoCompletion = errors.New("no completion in response")
)

const DefaultTimeout = 15 * time.Second

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries the endpoint settings with every call so that
// administrative changes apply without a restart.
type CompletionRequest struct {
	Endpoint string
	Model    string
	APIKey   string
	Messages []Message
}

type Client struct {
	Timeout time.Duration
	Client  *http.Client
}

type chatCompletionReq struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatCompletionResp struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Complete sends the whole transcript with temperature 0 and returns the
// first choice's content. It never retries.
func (c *Client) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	if c.Client == nil {
		return "", fmt.Errorf("%w: http client is nil", ErrUnavailable)
	}

	b, err := json.Marshal(chatCompletionReq{
		Model:       in.Model,
		Messages:    in.Messages,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}

	cctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, in.Endpoint, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+in.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrNoCompletion, resp.StatusCode, snippet(body))
	}

	var decoded chatCompletionResp
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrNoCompletion, err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", fmt.Errorf("%w: %s", ErrNoCompletion, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("%w: %s", ErrNoCompletion, snippet(body))
	}
	return *decoded.Choices[0].Message.Content, nil
}

func snippet(body []byte) string {
	if len(body) > 4*1024 {
		body = body[:4*1024]
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty body"
	}
	return msg
}
