package chatapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

// Client is one OpenAI-compatible chat-completions provider. The same
// client shape serves every task kind; only the message payload
// differs: vision kinds attach the image as a data URL part, text
// kinds send plain content, and JSON-schema kinds request json_object
// output.
type Client struct {
	id         string
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

func New(id, baseURL, model, apiKey string) *Client {
	return &Client{
		id:         id,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Infer(ctx context.Context, task domain.InferenceTask) (string, int, error) {
	body, err := json.Marshal(c.buildRequest(task))
	if err != nil {
		return "", 0, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, nil
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode chat envelope: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", resp.StatusCode, fmt.Errorf("chat response has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), resp.StatusCode, nil
}

func (c *Client) buildRequest(task domain.InferenceTask) map[string]any {
	request := map[string]any{
		"model":  c.model,
		"stream": false,
	}

	switch {
	case len(task.Image) > 0:
		request["messages"] = []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": task.Prompt},
				{"type": "image_url", "image_url": map[string]any{
					"url": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(task.Image),
				}},
			},
		}}
	default:
		content := task.Prompt
		if task.Text != "" {
			content = task.Prompt + "\n\n" + task.Text
		}
		request["messages"] = []map[string]any{{
			"role":    "user",
			"content": content,
		}}
	}

	if wantsJSONOutput(task.Kind) {
		request["response_format"] = map[string]any{"type": "json_object"}
	}
	return request
}

// wantsJSONOutput: price search providers run with web augmentation
// and some of them reject response_format, so that kind asks for JSON
// in the prompt only.
func wantsJSONOutput(kind domain.TaskKind) bool {
	return kind != domain.TaskPriceSearch
}
