package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/germesbot/germes/internal/config"
)

// Client talks to the OpenAI HTTP API for chat completions and image
// generation. No retries: provider reliability is not this bot's
// responsibility.
type Client struct {
	apiKey     string
	baseURL    string
	chatModel  string
	imageModel string
	imageSize  string
	persona    string
	httpClient *http.Client
	log        *slog.Logger
}

// Image is a generated artifact, decoded and ready to send.
type Image struct {
	Bytes []byte
	Mime  string
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &Client{
		apiKey:     cfg.OpenAIAPIKey,
		baseURL:    strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		chatModel:  cfg.ChatModel,
		imageModel: cfg.ImageModel,
		imageSize:  cfg.ImageSize,
		persona:    cfg.ChatPersona,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete runs a chat completion with the configured persona as the
// system message.
func (c *Client) Complete(ctx context.Context, userMessage string) (string, error) {
	payload := map[string]any{
		"model": c.chatModel,
		"messages": []chatMessage{
			{Role: "system", Content: c.persona},
			{Role: "user", Content: userMessage},
		},
	}

	var completion struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/v1/chat/completions", payload, &completion); err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// GenerateImage asks for a single image and returns the decoded bytes.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	payload := map[string]any{
		"model":           c.imageModel,
		"prompt":          prompt,
		"n":               1,
		"size":            c.imageSize,
		"response_format": "b64_json",
	}

	var generation struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/v1/images/generations", payload, &generation); err != nil {
		return nil, err
	}
	if len(generation.Data) == 0 || generation.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image generation returned no data")
	}

	data, err := base64.StdEncoding.DecodeString(generation.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	return &Image{Bytes: data, Mime: "image/png"}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post openai: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		c.log.Error("openai request failed", "status", resp.StatusCode, "path", path, "body", truncateBody(rawBody))
		return fmt.Errorf("openai error: status=%d path=%s body=%s", resp.StatusCode, path, truncateBody(rawBody))
	}

	if err := json.Unmarshal(rawBody, out); err != nil {
		return fmt.Errorf("decode response: %w (body=%s)", err, truncateBody(rawBody))
	}
	return nil
}

func truncateBody(body []byte) string {
	const maxLen = 512
	s := string(body)
	if len(s) > maxLen {
		return s[:maxLen] + "...(truncated)"
	}
	return s
}
