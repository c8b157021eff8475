// Package moonraker provides a Moonraker API client.
// The daemon talks JSON-RPC 2.0 over the Moonraker websocket to execute
// G-code scripts and to track print_stats and toolchanger status objects.
package moonraker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pinwatch-go/pkg/errors"
	"pinwatch-go/pkg/log"
)

// JSON-RPC 2.0 structures

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int64       `json:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcMessage covers both responses and server-initiated notifications.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      *int64          `json:"id,omitempty"`
}

// statusMap is object name -> field -> value as delivered by Moonraker.
type statusMap map[string]map[string]interface{}

// Client maintains a websocket connection to Moonraker with automatic
// reconnection. While disconnected the status accessors report degraded
// defaults (not printing, toolchanger unavailable).
type Client struct {
	url          string
	toolchangers []string
	log          *log.Logger

	dialTimeout time.Duration

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu         sync.Mutex
	printState string
	tcStatus   map[string]string

	nextID atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a client that will track print_stats plus the status of each
// named toolchanger object.
func New(url string, toolchangers []string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New("moonraker")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:          url,
		toolchangers: toolchangers,
		log:          logger,
		dialTimeout:  10 * time.Second,
		tcStatus:     make(map[string]string),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the connect/read loop. It returns immediately; the
// client keeps reconnecting with backoff until Close.
func (c *Client) Start() {
	c.wg.Add(1)
	go c.connectLoop()
}

// Close shuts the client down.
func (c *Client) Close() {
	c.cancel()
	c.writeMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.writeMu.Unlock()
	c.wg.Wait()
}

// IsPrinting reports whether print_stats has state "printing".
// False while disconnected or before the first status arrives.
func (c *Client) IsPrinting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.printState == "printing"
}

// ToolchangerStatus returns the cached status of the named toolchanger.
// ok is false while disconnected or before the object has reported.
func (c *Client) ToolchangerStatus(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.tcStatus[name]
	return st, ok
}

// RunScript submits a G-code script for execution. Fire-and-forget: the
// response is consumed by the read loop and only logged on error.
func (c *Client) RunScript(script string) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "printer.gcode.script",
		Params:  map[string]string{"script": script},
		ID:      c.nextID.Add(1),
	}
	return c.send(req)
}

func (c *Client) send(req rpcRequest) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return errors.MoonrakerError("not connected")
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return errors.Wrap(err, errors.ErrMoonraker, "write failed")
	}
	return nil
}

func (c *Client) connectLoop() {
	defer c.wg.Done()

	backoff := time.Second
	for c.ctx.Err() == nil {
		conn, err := c.dial()
		if err != nil {
			c.log.WithError(err).Warn("connect to %s failed, retrying in %s", c.url, backoff)
			select {
			case <-time.After(backoff):
			case <-c.ctx.Done():
				return
			}
			if backoff < 16*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		c.writeMu.Lock()
		c.conn = conn
		c.writeMu.Unlock()
		c.log.Info("connected to %s", c.url)

		if err := c.subscribe(); err != nil {
			c.log.WithError(err).Warn("subscribe failed")
		}
		c.readLoop(conn)
		c.dropConnection(conn)
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.dialTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	return conn, err
}

// subscribe asks Moonraker for status updates on print_stats and each
// toolchanger object. The subscribe result carries the initial snapshot.
func (c *Client) subscribe() error {
	objects := map[string]interface{}{
		"print_stats": []string{"state"},
	}
	for _, name := range c.toolchangers {
		objects[name] = []string{"status"}
	}
	return c.send(rpcRequest{
		JSONRPC: "2.0",
		Method:  "printer.objects.subscribe",
		Params:  map[string]interface{}{"objects": objects},
		ID:      c.nextID.Add(1),
	})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.log.WithError(err).Warn("connection lost")
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.WithError(err).Warn("bad frame from server")
		return
	}

	switch {
	case msg.Method == "notify_status_update":
		// params: [status, eventtime]
		var params []json.RawMessage
		if err := json.Unmarshal(msg.Params, &params); err != nil || len(params) == 0 {
			return
		}
		var status statusMap
		if err := json.Unmarshal(params[0], &status); err != nil {
			return
		}
		c.applyStatus(status)

	case msg.Method == "notify_klippy_disconnected", msg.Method == "notify_klippy_shutdown":
		c.resetStatus()

	case msg.ID != nil && msg.Error != nil:
		c.log.WithField("code", msg.Error.Code).Warn("rpc error: %s", msg.Error.Message)

	case msg.ID != nil && msg.Result != nil:
		// Subscribe responses carry {eventtime, status: {...}}.
		var result struct {
			Status statusMap `json:"status"`
		}
		if err := json.Unmarshal(msg.Result, &result); err == nil && result.Status != nil {
			c.applyStatus(result.Status)
		}
	}
}

func (c *Client) applyStatus(status statusMap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for object, fields := range status {
		if object == "print_stats" {
			if v, ok := fields["state"].(string); ok {
				c.printState = v
			}
			continue
		}
		if v, ok := fields["status"].(string); ok {
			c.tcStatus[object] = v
		}
	}
}

// resetStatus drops cached state so the providers report degraded
// defaults until fresh status arrives.
func (c *Client) resetStatus() {
	c.mu.Lock()
	c.printState = ""
	c.tcStatus = make(map[string]string)
	c.mu.Unlock()
}

func (c *Client) dropConnection(conn *websocket.Conn) {
	conn.Close()
	c.writeMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.writeMu.Unlock()
	c.resetStatus()
}
