// File: internal/cdp/channel.go
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
	DefaultHandshakeTimeout = 10 * time.Second
	// DefaultCommandTimeout applies when Send is given a non-positive timeout.
	DefaultCommandTimeout = 5 * time.Second

	closeWriteWait = time.Second
)

// Options configures Dial.
type Options struct {
	HandshakeTimeout time.Duration
	// Dialer overrides the WebSocket dialer. HandshakeTimeout is ignored when set.
	Dialer *websocket.Dialer
	Logger *zap.Logger
}

type pendingResult struct {
	resp *Response
	err  error
}

type pendingRequest struct {
	done  chan pendingResult
	timer *time.Timer
}

// Channel is an open command channel to one target. Requests are matched to
// responses by id; frames with any other id, and events, are discarded.
type Channel struct {
	address string
	conn    *websocket.Conn
	logger  *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]*pendingRequest
	closed  bool

	closeOnce sync.Once
	readDone  chan struct{}
}

// Dial opens a command channel to address. Any failure before the handshake
// completes is returned as a *ConnectionError.
func Dial(ctx context.Context, address string, opts Options) (*Channel, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := opts.Dialer
	if dialer == nil {
		timeout := opts.HandshakeTimeout
		if timeout <= 0 {
			timeout = DefaultHandshakeTimeout
		}
		dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: timeout,
		}
	}

	conn, resp, err := dialer.DialContext(ctx, address, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &ConnectionError{Address: address, Err: err}
	}

	c := &Channel{
		address:  address,
		conn:     conn,
		logger:   logger.Named("cdp").With(zap.String("address", address)),
		pending:  make(map[int64]*pendingRequest),
		readDone: make(chan struct{}),
	}
	go c.readLoop()

	c.logger.Debug("Command channel connected.")
	return c, nil
}

// Address returns the address the channel was dialed with.
func (c *Channel) Address() string { return c.address }

// Send writes cmd and waits for the response with the same id. A response
// with an error payload is returned together with an *EvalError. If nothing
// matching arrives within timeout the request is abandoned with a
// *TimeoutError; a response arriving later is discarded.
func (c *Channel) Send(ctx context.Context, cmd Command, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding %s command: %w", cmd.Method, err)
	}

	req := &pendingRequest{done: make(chan pendingResult, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &ConnectionError{Address: c.address, Err: ErrClosed}
	}
	if _, inFlight := c.pending[cmd.ID]; inFlight {
		c.mu.Unlock()
		return nil, fmt.Errorf("command id %d is already in flight", cmd.ID)
	}
	c.pending[cmd.ID] = req
	req.timer = time.AfterFunc(timeout, func() {
		c.resolve(cmd.ID, pendingResult{err: &TimeoutError{ID: cmd.ID, Method: cmd.Method, After: timeout}})
	})
	c.mu.Unlock()

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(cmd.ID)
		return nil, &ConnectionError{Address: c.address, Err: err}
	}
	c.logger.Debug("Command sent.", zap.Int64("id", cmd.ID), zap.String("method", cmd.Method))

	select {
	case res := <-req.done:
		if res.err != nil {
			return nil, res.err
		}
		if res.resp.Error != nil {
			return res.resp, &EvalError{
				Method:  cmd.Method,
				Code:    res.resp.Error.Code,
				Message: res.resp.Error.Message,
			}
		}
		return res.resp, nil
	case <-ctx.Done():
		c.forget(cmd.ID)
		return nil, ctx.Err()
	}
}

// Evaluate runs expression in the target's page context and decodes the
// result. An exception thrown by the expression is reported as *EvalError
// alongside the decoded result.
func (c *Channel) Evaluate(ctx context.Context, expression string, timeout time.Duration) (*EvaluateResult, error) {
	resp, err := c.Send(ctx, NewEvaluateCommand(expression), timeout)
	if err != nil {
		return nil, err
	}
	return decodeEvaluateResult(resp)
}

// Pending returns the number of requests still awaiting a response.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close releases the connection and fails any pending request with a
// *ConnectionError wrapping ErrClosed. It is safe to call more than once.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.failPending(&ConnectionError{Address: c.address, Err: ErrClosed})

		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteWait),
		)
		c.writeMu.Unlock()

		err = c.conn.Close()
		<-c.readDone
		c.logger.Debug("Command channel closed.")
	})
	return err
}

func (c *Channel) readLoop() {
	defer close(c.readDone)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.failPending(&ConnectionError{Address: c.address, Err: err})
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("Discarding undecodable frame.", zap.Error(err))
			continue
		}
		if msg.ID == nil {
			// Event notification.
			continue
		}

		resp := &Response{ID: *msg.ID, Result: msg.Result, Error: msg.Error}
		if !c.resolve(resp.ID, pendingResult{resp: resp}) {
			c.logger.Debug("Discarding response with no pending request.", zap.Int64("id", resp.ID))
		}
	}
}

// resolve completes the pending request for id. Whichever of the timer and
// the read loop gets here first wins; the other finds nothing to resolve.
func (c *Channel) resolve(id int64, res pendingResult) bool {
	c.mu.Lock()
	req, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		req.timer.Stop()
	}
	c.mu.Unlock()

	if ok {
		req.done <- res
	}
	return ok
}

func (c *Channel) forget(id int64) {
	c.mu.Lock()
	if req, ok := c.pending[id]; ok {
		req.timer.Stop()
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *Channel) failPending(err error) {
	c.mu.Lock()
	c.closed = true
	failed := make([]*pendingRequest, 0, len(c.pending))
	for id, req := range c.pending {
		req.timer.Stop()
		delete(c.pending, id)
		failed = append(failed, req)
	}
	c.mu.Unlock()

	for _, req := range failed {
		req.done <- pendingResult{err: err}
	}
}
