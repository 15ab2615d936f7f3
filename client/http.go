package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brensch/tetrisbot/board"
	"github.com/brensch/tetrisbot/session"
	"github.com/brensch/tetrisbot/strategy"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// HTTPClient talks to the game server's polling API:
//
//	GET {base}/status
//	GET {base}/matrix
//	GET {base}/command?command=X
type HTTPClient struct {
	config Config
	client *http.Client
}

// NewHTTPClient creates a client. The per-request deadline comes from the
// caller's context; config.Timeout is a backstop on the underlying http.Client.
func NewHTTPClient(config Config) *HTTPClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &HTTPClient{
		config: config,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// statusResponse is the /status body.
type statusResponse struct {
	State       string    `json:"state"`
	LastUpdated Timestamp `json:"lastUpdated"`
}

// matrixResponse is the /matrix body.
type matrixResponse struct {
	Matrix []board.RawRow `json:"matrix"`
}

// commandResponse is the /command body. A missing success field means the
// command was delivered.
type commandResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// GetStatus fetches the session state.
func (c *HTTPClient) GetStatus(ctx context.Context, sessionID string) (session.Status, error) {
	var resp statusResponse
	if err := c.getJSON(ctx, "status", c.config.BaseURL(sessionID)+"/status", &resp); err != nil {
		return session.Status{}, err
	}
	state, err := session.ParseState(resp.State)
	if err != nil {
		return session.Status{}, &session.TransportError{Op: "status", Err: err}
	}
	return session.Status{State: state, LastUpdated: resp.LastUpdated.Time}, nil
}

// GetBoard fetches the raw matrix rows. Shape checks are left to board.Parse.
func (c *HTTPClient) GetBoard(ctx context.Context, sessionID string) ([]board.RawRow, error) {
	var resp matrixResponse
	if err := c.getJSON(ctx, "matrix", c.config.BaseURL(sessionID)+"/matrix", &resp); err != nil {
		return nil, err
	}
	return resp.Matrix, nil
}

// SendCommand dispatches one command. A 2xx with an empty body counts as delivered.
func (c *HTTPClient) SendCommand(ctx context.Context, sessionID string, cmd strategy.Command) (session.CommandResult, error) {
	u := c.config.BaseURL(sessionID) + "/command?command=" + url.QueryEscape(string(cmd))
	op := "command " + string(cmd)

	body, err := c.get(ctx, op, u)
	if err != nil {
		return session.CommandResult{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return session.CommandResult{Success: true}, nil
	}

	var resp commandResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return session.CommandResult{}, &session.TransportError{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	res := session.CommandResult{Success: true, Message: resp.Message}
	if resp.Success != nil {
		res.Success = *resp.Success
	}
	return res, nil
}

// getJSON fetches u and decodes a non-empty JSON body into v.
func (c *HTTPClient) getJSON(ctx context.Context, op, u string, v any) error {
	body, err := c.get(ctx, op, u)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &session.TransportError{Op: op, Err: fmt.Errorf("empty response")}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &session.TransportError{Op: op, Err: fmt.Errorf("decode %q: %w", truncate(string(body), 100), err)}
	}
	return nil
}

// get performs a GET and returns the body of a 2xx response.
func (c *HTTPClient) get(ctx context.Context, op, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, &session.TransportError{Op: op, Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &session.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &session.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &session.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response %q", truncate(string(body), 100))}
	}
	return body, nil
}

// Timestamp accepts RFC3339 strings or unix milliseconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(str, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", str, err)
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", s, err)
	}
	t.Time = time.UnixMilli(int64(ms))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
