package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/tetrisbot/board"
	"github.com/brensch/tetrisbot/session"
	"github.com/brensch/tetrisbot/strategy"
)

// Request types sent over the websocket.
const (
	msgStatus  = "status"
	msgMatrix  = "matrix"
	msgCommand = "command"
)

// wsRequest is the envelope sent for every call.
type wsRequest struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
}

// wsResponse is the envelope the server answers with. Messages whose id does
// not match the pending request (pushes, late replies) are skipped.
type wsResponse struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// WSClient speaks the same protocol as HTTPClient over one websocket per
// session. Connections are dialed on first use and dropped on any error; the
// next call redials.
type WSClient struct {
	config Config
	dialer websocket.Dialer
	// http serves connection probes, which are plain HTTP even in ws mode.
	http *http.Client

	mu    sync.Mutex
	conns map[string]*wsConn

	nextID atomic.Uint64
}

// wsConn serializes calls on one connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSClient creates a websocket client. Nothing is dialed until the first call.
func NewWSClient(config Config) *WSClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &WSClient{
		config: config,
		dialer: websocket.Dialer{
			HandshakeTimeout: timeout,
		},
		http:  &http.Client{Timeout: timeout},
		conns: make(map[string]*wsConn),
	}
}

// GetStatus fetches the session state.
func (c *WSClient) GetStatus(ctx context.Context, sessionID string) (session.Status, error) {
	var resp statusResponse
	if err := c.call(ctx, sessionID, wsRequest{Type: msgStatus}, &resp); err != nil {
		return session.Status{}, err
	}
	state, err := session.ParseState(resp.State)
	if err != nil {
		return session.Status{}, &session.TransportError{Op: "ws status", Err: err}
	}
	return session.Status{State: state, LastUpdated: resp.LastUpdated.Time}, nil
}

// GetBoard fetches the raw matrix rows.
func (c *WSClient) GetBoard(ctx context.Context, sessionID string) ([]board.RawRow, error) {
	var resp matrixResponse
	if err := c.call(ctx, sessionID, wsRequest{Type: msgMatrix}, &resp); err != nil {
		return nil, err
	}
	return resp.Matrix, nil
}

// SendCommand dispatches one command.
func (c *WSClient) SendCommand(ctx context.Context, sessionID string, cmd strategy.Command) (session.CommandResult, error) {
	var resp commandResponse
	if err := c.call(ctx, sessionID, wsRequest{Type: msgCommand, Command: string(cmd)}, &resp); err != nil {
		return session.CommandResult{}, err
	}
	res := session.CommandResult{Success: true, Message: resp.Message}
	if resp.Success != nil {
		res.Success = *resp.Success
	}
	return res, nil
}

// Probe checks the HTTP URLs of the session, same as HTTPClient.Probe.
func (c *WSClient) Probe(ctx context.Context, sessionID string) []ProbeResult {
	return probe(ctx, c.http, c.config, sessionID)
}

// Close drops every open connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, wc := range c.conns {
		wc.mu.Lock()
		if wc.conn != nil {
			wc.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			wc.conn.Close()
			wc.conn = nil
		}
		wc.mu.Unlock()
		delete(c.conns, id)
	}
	return nil
}

func (c *WSClient) connFor(sessionID string) *wsConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	wc, ok := c.conns[sessionID]
	if !ok {
		wc = &wsConn{}
		c.conns[sessionID] = wc
	}
	return wc
}

// call sends req and decodes the matching response's data into v.
func (c *WSClient) call(ctx context.Context, sessionID string, req wsRequest, v any) error {
	op := "ws " + req.Type
	req.ID = strconv.FormatUint(c.nextID.Add(1), 10)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.dialer.HandshakeTimeout)
	}

	wc := c.connFor(sessionID)
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if wc.conn == nil {
		conn, _, err := c.dialer.DialContext(ctx, c.config.WSURL(sessionID), http.Header{"User-Agent": []string{c.config.UserAgent}})
		if err != nil {
			return &session.TransportError{Op: op, Err: fmt.Errorf("failed to connect: %w", err)}
		}
		wc.conn = conn
	}

	fail := func(err error) error {
		wc.conn.Close()
		wc.conn = nil
		return &session.TransportError{Op: op, Err: err}
	}

	wc.conn.SetWriteDeadline(deadline)
	if err := wc.conn.WriteJSON(req); err != nil {
		return fail(fmt.Errorf("write: %w", err))
	}

	for {
		wc.conn.SetReadDeadline(deadline)
		_, message, err := wc.conn.ReadMessage()
		if err != nil {
			return fail(fmt.Errorf("read error: %w", err))
		}

		var resp wsResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			continue
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != "" {
			return &session.TransportError{Op: op, Err: fmt.Errorf("server error: %s", resp.Error)}
		}
		if len(resp.Data) == 0 || string(resp.Data) == "null" {
			if req.Type == msgCommand {
				return nil
			}
			return &session.TransportError{Op: op, Err: fmt.Errorf("empty response")}
		}
		if err := json.Unmarshal(resp.Data, v); err != nil {
			return &session.TransportError{Op: op, Err: fmt.Errorf("decode: %w", err)}
		}
		return nil
	}
}
