package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	log "github.com/sirupsen/logrus"
)

// Client talks to a local Ollama API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	poll       time.Duration
}

// NewClient creates an Ollama client for model.
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // first call loads the model
		},
		poll: 3 * time.Second,
	}
}

type generateOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	NumPredict    int     `json:"num_predict"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

// move lists are short and should stay on topic
var suggestOptions = generateOptions{
	Temperature:   0.7,
	TopP:          0.9,
	NumPredict:    160,
	RepeatPenalty: 1.1,
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Think   *bool           `json:"think,omitempty"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

// Available reports whether the Ollama server answers.
func (c *Client) Available(ctx context.Context) bool {
	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// HasModel reports whether the configured model has been pulled. A tag
// without a version matches ":latest".
func (c *Client) HasModel(ctx context.Context) (bool, error) {
	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		return false, fault.Wrap(err, fmsg.With("ollama tags"))
	}
	defer resp.Body.Close()

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fault.Wrap(err, fmsg.With("decode ollama tags"))
	}
	want := c.model
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	for _, m := range tags.Models {
		if m.Name == want || m.Name == c.model {
			return true, nil
		}
	}
	return false, nil
}

// Generate sends a prompt with a system message and returns the trimmed
// response text. Thinking output is disabled for models that support it.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	think := false
	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		System:  system,
		Think:   &think,
		Options: suggestOptions,
	})
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("marshal ollama request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("ollama request"))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("ollama generate"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fault.New(fmt.Sprintf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fault.Wrap(err, fmsg.With("decode ollama response"))
	}
	return strings.TrimSpace(result.Response), nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// WaitForReady checks Ollama right away and then on every poll interval
// until it answers or ctx expires. Ollama is optional, so callers only log
// the outcome.
func (c *Client) WaitForReady(ctx context.Context) bool {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		if c.Available(ctx) {
			if ok, err := c.HasModel(ctx); err == nil && !ok {
				log.Warnf("Ollama is up but model %s is not pulled (ollama pull %s)", c.model, c.model)
			}
			log.Printf("Ollama ready (model: %s)", c.model)
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
