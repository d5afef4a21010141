package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"countryfilter/internal/messaging"
	"countryfilter/internal/settings"

	"github.com/google/go-querystring/query"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned by Request while no connection is up.
var ErrNotConnected = errors.New("bridge: not connected")

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Options configure a client. Tagged fields are sent in the dial query.
type Options struct {
	Surface  string `url:"surface,omitempty"`
	Compress bool   `url:"compress,omitempty"`

	// Timeout bounds each Request on top of its context.
	Timeout time.Duration `url:"-"`
}

// Client is the surface side of the bridge.
type Client struct {
	endpoint string
	opts     Options
	codec    *codec

	nextID atomic.Uint64

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]chan messaging.Response
	subs    []chan messaging.Outbound

	writeMu sync.Mutex
}

// New creates a client without connecting. Use Run for a long-lived
// connection or Dial for a single one.
func New(endpoint string, opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultReplyTimeout
	}
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	return &Client{
		endpoint: endpoint,
		opts:     opts,
		codec:    c,
		pending:  make(map[uint64]chan messaging.Response),
	}, nil
}

// Dial connects once and serves the connection in the background.
func Dial(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	c, err := New(endpoint, opts)
	if err != nil {
		return nil, err
	}
	conn, err := c.connect(ctx)
	if err != nil {
		c.codec.close()
		return nil, err
	}
	go c.readLoop(conn)
	return c, nil
}

// Run keeps a connection up until ctx ends, reconnecting with
// exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	backoff := minBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn, err := c.connect(ctx)
		if err == nil {
			backoff = minBackoff
			stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
			err = c.readLoop(conn)
			stop()
		}
		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Err(err).Str("endpoint", c.endpoint).Dur("retry_in", backoff).Msg("bridge: connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// URL returns the dial URL including the encoded options.
func (c *Client) URL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	v, err := query.Values(c.opts)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vals := range v {
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := c.URL()
	if err != nil {
		return nil, fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	log.Debug().Str("url", wsURL).Msg("bridge: connected")
	return conn, nil
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	defer c.disconnect(conn)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}
		data, err := c.codec.payload(frame)
		if err != nil {
			log.Warn().Err(err).Msg("bridge: dropping frame")
			continue
		}
		env, err := messaging.Decode(data)
		if err != nil {
			log.Warn().Err(err).Msg("bridge: dropping frame")
			continue
		}

		switch {
		case env.Response != nil:
			c.deliver(*env.Response)
		case env.Outbound != nil:
			c.publish(*env.Outbound)
		}
	}
}

func (c *Client) deliver(resp messaging.Response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()
	if ok {
		ch <- resp
	}
}

func (c *Client) publish(o messaging.Outbound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- o:
		default:
			log.Debug().Msg("bridge: subscriber lagging, notification dropped")
		}
	}
}

// disconnect fails every pending request so callers see ErrNoReply
// instead of waiting for their timeout.
func (c *Client) disconnect(conn *websocket.Conn) {
	_ = conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Subscribe returns a channel of outbound notifications. Slow readers
// miss notifications rather than stalling the connection.
func (c *Client) Subscribe() <-chan messaging.Outbound {
	ch := make(chan messaging.Outbound, 16)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

// Request sends req and waits for the matching response. It returns
// messaging.ErrNoReply when no response arrives in time or the connection
// drops. Errors reported by the engine are returned with the response.
func (c *Client) Request(ctx context.Context, req messaging.Request) (messaging.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req.ID = c.nextID.Add(1)
	reply := make(chan messaging.Response, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return messaging.Response{}, ErrNotConnected
	}
	c.pending[req.ID] = reply
	c.mu.Unlock()

	mt, data, err := c.codec.marshal(req, c.opts.Compress)
	if err == nil {
		c.writeMu.Lock()
		err = conn.WriteMessage(mt, data)
		c.writeMu.Unlock()
	}
	if err != nil {
		c.forget(req.ID)
		return messaging.Response{}, fmt.Errorf("send %s: %w", req.Action, err)
	}

	select {
	case resp, ok := <-reply:
		if !ok {
			return messaging.Response{}, messaging.ErrNoReply
		}
		if resp.Error != "" {
			return resp, remoteError(resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return messaging.Response{}, messaging.ErrNoReply
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close drops the current connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

var remoteSentinels = []error{
	messaging.ErrUnknownAction,
	messaging.ErrMissingSettings,
	messaging.ErrNoReply,
	settings.ErrVersionConflict,
}

// RemoteError is an error reported by the engine in a response.
type RemoteError struct {
	Msg      string
	sentinel error
}

func (e *RemoteError) Error() string { return "engine: " + e.Msg }

func (e *RemoteError) Unwrap() error { return e.sentinel }

// remoteError maps the message back onto a known sentinel where possible
func remoteError(msg string) error {
	re := &RemoteError{Msg: msg}
	for _, sentinel := range remoteSentinels {
		if strings.Contains(msg, sentinel.Error()) {
			re.sentinel = sentinel
			break
		}
	}
	return re
}
