package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Activation is sent downstream when an action joins the active path.
type Activation struct {
	Run    string `json:"run"`
	Key    string `json:"key"`
	Action string `json:"action"`
}

// Forwarder delivers activations to whatever executes the actions.
type Forwarder interface {
	Forward(ctx context.Context, a Activation) error
}

// LogForwarder only logs activations.
type LogForwarder struct {
	Logger *slog.Logger
}

func (f LogForwarder) Forward(ctx context.Context, a Activation) error {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "action activated", "run", a.Run, "key", a.Key, "action", a.Action)
	return nil
}

// HTTPForwarder POSTs each activation as JSON to Endpoint/<action>.
type HTTPForwarder struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPForwarder returns a forwarder whose requests time out after timeout.
func NewHTTPForwarder(endpoint string, timeout time.Duration) *HTTPForwarder {
	return &HTTPForwarder{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   &http.Client{Timeout: timeout},
	}
}

func (f *HTTPForwarder) Forward(ctx context.Context, a Activation) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	target := f.Endpoint + "/" + url.PathEscape(a.Action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("forward %s: %w", a.Action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("forward %s: %w", a.Action, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("forward %s: %s returned %s", a.Action, target, resp.Status)
	}
	return nil
}
