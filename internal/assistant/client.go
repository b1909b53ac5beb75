// Package assistant bridges chat messages to the Gemini API. A "@kaka"
// command in a message enqueues a job; the worker here calls the model and
// posts the reply back into the conversation under a synthetic sender.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// Part is one typed chunk of a model response: either text or inline binary
// content (base64 in InlineData) with a MIME type.
type Part struct {
	Text       string
	InlineMIME string
	InlineData string
}

type Client struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	ImageModel string
	HTTPClient *http.Client
	DryRun     bool // не ходим в API, отвечаем заглушкой
}

func NewClient(apiKey, baseURL, chatModel, imageModel string, dryRun bool) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ChatModel:  chatModel,
		ImageModel: imageModel,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		DryRun:     dryRun,
	}
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// GenerateText runs a single-turn completion with a system instruction and
// returns the first text part of the first candidate.
func (c *Client) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	if c.DryRun {
		return "[dry-run] " + prompt, nil
	}

	req := generateRequest{
		Contents:          []content{{Parts: []textPart{{Text: prompt}}}},
		SystemInstruction: &content{Parts: []textPart{{Text: system}}},
	}
	parts, err := c.generate(ctx, c.ChatModel, req)
	if err != nil {
		return "", err
	}
	for _, p := range parts {
		if p.Text != "" {
			return p.Text, nil
		}
	}
	return "", nil
}

// GenerateMultimodal requests both text and image modalities and returns the
// raw candidate parts.
func (c *Client) GenerateMultimodal(ctx context.Context, prompt string) ([]Part, error) {
	if c.DryRun {
		return nil, nil
	}

	req := generateRequest{
		Contents:         []content{{Parts: []textPart{{Text: prompt}}}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	}
	return c.generate(ctx, c.ImageModel, req)
}

func (c *Client) generate(ctx context.Context, model string, payload generateRequest) ([]Part, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.BaseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	return parseParts(raw)
}

// parseParts extracts the parts of the first candidate.
func parseParts(raw []byte) ([]Part, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("gemini: parse response: %w", err)
	}

	candidates := v.GetArray("candidates")
	if len(candidates) == 0 {
		return nil, nil
	}

	rawParts := candidates[0].GetArray("content", "parts")
	parts := make([]Part, 0, len(rawParts))
	for _, rp := range rawParts {
		part := Part{
			Text:       string(rp.GetStringBytes("text")),
			InlineMIME: string(rp.GetStringBytes("inlineData", "mimeType")),
			InlineData: string(rp.GetStringBytes("inlineData", "data")),
		}
		parts = append(parts, part)
	}
	return parts, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
