package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// DefaultCallTimeout bounds a whole CLI round trip. Checkout replies only
// after the TUI swap completes, so this must comfortably exceed resume
// polling (waitSeconds) plus the kill grace period.
const DefaultCallTimeout = 60 * time.Second

// Client talks to one wrapper instance over its Unix socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the given socket path.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: DefaultCallTimeout}
}

// WithTimeout overrides the round-trip deadline.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// Call sends one request and decodes the single response. A response with
// ok=false is returned as a *Error so callers can inspect the code.
func (c *Client) Call(action string, payload any) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.socketPath, err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	req := Request{Action: action}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		req.Payload = raw
	}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	line = append(line, '\n')
	if _, err := conn.Write(line); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if !resp.OK {
		if resp.Err != nil {
			return nil, resp.Err
		}
		return nil, Errorf(CodeInternal, "request failed without error detail")
	}
	return resp.Result, nil
}

// CallInto sends one request and unmarshals the result into out.
func (c *Client) CallInto(action string, payload, out any) error {
	raw, err := c.Call(action, payload)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", action, err)
	}
	return nil
}
