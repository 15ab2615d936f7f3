// Package client implements session.GameClient over the game server's HTTP
// API and over its websocket endpoint.
package client

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the server address. Every session shares it and appends its own id.
type Config struct {
	Protocol  string // http or https
	Host      string
	Port      int
	APIPath   string // path prefix the session id is appended to
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Protocol:  "https",
		Host:      "tetris-server.example.com",
		Port:      3001,
		APIPath:   "/api/tetris/",
		Timeout:   3 * time.Second,
		UserAgent: "TetrisBot/1.0",
	}
}

// BaseURL is the session root, e.g. https://host:3001/api/tetris/my-session.
func (c Config) BaseURL(sessionID string) string {
	return fmt.Sprintf("%s://%s:%d%s%s", c.Protocol, c.Host, c.Port, c.apiPath(), url.PathEscape(sessionID))
}

// WSURL is the websocket endpoint for a session.
func (c Config) WSURL(sessionID string) string {
	scheme := "ws"
	if c.Protocol == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s%s/ws", scheme, c.Host, c.Port, c.apiPath(), url.PathEscape(sessionID))
}

// apiPath normalizes the prefix to start and end with a slash.
func (c Config) apiPath() string {
	p := c.APIPath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// Validate rejects configs no request could be built from.
func (c Config) Validate() error {
	switch c.Protocol {
	case "http", "https":
	default:
		return fmt.Errorf("protocol must be http or https, got %q", c.Protocol)
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}
