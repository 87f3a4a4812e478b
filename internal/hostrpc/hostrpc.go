// Package hostrpc is a bidirectional method-call bridge between an embedded
// widget (child) and the page hosting it (parent), carried over a
// websocket. Each side exposes named methods the other can call.
package hostrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

var (
	ErrConnectionTimeout   = errors.New("hostrpc: connection timed out")
	ErrConnectionDestroyed = errors.New("hostrpc: connection destroyed")
)

// DefaultTimeout bounds the handshake when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

const (
	msgSyn   = "syn"
	msgAck   = "ack"
	msgCall  = "call"
	msgReply = "reply"
)

// Method handles a call from the remote side. args holds the raw JSON of
// each positional argument.
type Method func(ctx context.Context, args []json.RawMessage) (any, error)

type Methods map[string]Method

// NoOp is a Method that accepts anything and returns nothing.
func NoOp(context.Context, []json.RawMessage) (any, error) { return nil, nil }

type Options struct {
	Methods Methods
	Timeout time.Duration
	// OriginPatterns lists the host patterns allowed to connect (parent side).
	OriginPatterns []string
	Log            *logrus.Logger
}

type message struct {
	Type    string            `json:"type"`
	ID      uint64            `json:"id,omitempty"`
	Method  string            `json:"method,omitempty"`
	Args    []json.RawMessage `json:"args,omitempty"`
	Result  json.RawMessage   `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
	Methods []string          `json:"methods,omitempty"`
}

// RemoteError is a failure reported by the remote method.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("hostrpc: %s: %s", e.Method, e.Message)
}

// Conn is an established channel.
type Conn struct {
	ws      *websocket.Conn
	methods Methods
	remote  []string
	log     *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan message
	closed  bool
	done    chan struct{}
}

// Dial connects a child to its parent at url. It fails with
// ErrConnectionTimeout when the parent does not acknowledge in time.
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	opts = withDefaults(opts)
	hctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ws, _, err := websocket.Dial(hctx, url, nil)
	if err != nil {
		if errors.Is(hctx.Err(), context.DeadlineExceeded) {
			return nil, ErrConnectionTimeout
		}
		return nil, fmt.Errorf("hostrpc: dial: %w", err)
	}

	if err := wsjson.Write(hctx, ws, message{Type: msgSyn, Methods: opts.methodNames()}); err != nil {
		ws.Close(websocket.StatusInternalError, "handshake failed")
		return nil, handshakeErr(hctx, err)
	}
	var ack message
	if err := wsjson.Read(hctx, ws, &ack); err != nil {
		ws.Close(websocket.StatusInternalError, "handshake failed")
		return nil, handshakeErr(hctx, err)
	}
	if ack.Type != msgAck {
		ws.Close(websocket.StatusProtocolError, "expected ack")
		return nil, fmt.Errorf("hostrpc: unexpected handshake message %q", ack.Type)
	}

	return newConn(ws, opts, ack.Methods, "child"), nil
}

// Accept upgrades r into a parent side channel and waits for the child's
// handshake.
func Accept(w http.ResponseWriter, r *http.Request, opts Options) (*Conn, error) {
	opts = withDefaults(opts)
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
	if err != nil {
		return nil, fmt.Errorf("hostrpc: accept: %w", err)
	}

	hctx, cancel := context.WithTimeout(r.Context(), opts.Timeout)
	defer cancel()

	var syn message
	if err := wsjson.Read(hctx, ws, &syn); err != nil {
		ws.Close(websocket.StatusInternalError, "handshake failed")
		return nil, handshakeErr(hctx, err)
	}
	if syn.Type != msgSyn {
		ws.Close(websocket.StatusProtocolError, "expected syn")
		return nil, fmt.Errorf("hostrpc: unexpected handshake message %q", syn.Type)
	}
	if err := wsjson.Write(hctx, ws, message{Type: msgAck, Methods: opts.methodNames()}); err != nil {
		ws.Close(websocket.StatusInternalError, "handshake failed")
		return nil, handshakeErr(hctx, err)
	}

	return newConn(ws, opts, syn.Methods, "parent"), nil
}

func handshakeErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrConnectionTimeout
	}
	return fmt.Errorf("hostrpc: handshake: %w", err)
}

func withDefaults(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Methods == nil {
		opts.Methods = Methods{}
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return opts
}

func (o Options) methodNames() []string {
	names := make([]string, 0, len(o.Methods))
	for name := range o.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newConn(ws *websocket.Conn, opts Options, remote []string, side string) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:      ws,
		methods: opts.Methods,
		remote:  remote,
		log:     opts.Log.WithField("side", side),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[uint64]chan message),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// RemoteMethods lists the methods the other side announced.
func (c *Conn) RemoteMethods() []string { return c.remote }

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Call invokes method on the remote side and decodes its result into
// result, which may be nil.
func (c *Conn) Call(ctx context.Context, method string, result any, args ...any) error {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("hostrpc: encode %s args: %w", method, err)
		}
		raw = append(raw, b)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionDestroyed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, c.ws, message{Type: msgCall, ID: id, Method: method, Args: raw}); err != nil {
		return fmt.Errorf("hostrpc: send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrConnectionDestroyed
	case reply := <-ch:
		if reply.Error != "" {
			return &RemoteError{Method: method, Message: reply.Error}
		}
		if result == nil || len(reply.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(reply.Result, result); err != nil {
			return fmt.Errorf("hostrpc: decode %s result: %w", method, err)
		}
		return nil
	}
}

func (c *Conn) Close() error {
	err := c.ws.Close(websocket.StatusNormalClosure, "")
	c.shutdown()
	return err
}

func (c *Conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.done)
}

func (c *Conn) readLoop() {
	defer c.shutdown()
	for {
		var msg message
		if err := wsjson.Read(c.ctx, c.ws, &msg); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && c.ctx.Err() == nil {
				c.log.WithError(err).Debug("hostrpc read loop ended")
			}
			return
		}

		switch msg.Type {
		case msgCall:
			go c.handleCall(msg)
		case msgReply:
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
		default:
			c.log.WithField("type", msg.Type).Warn("hostrpc: unexpected message")
		}
	}
}

func (c *Conn) handleCall(msg message) {
	reply := message{Type: msgReply, ID: msg.ID}

	m, ok := c.methods[msg.Method]
	if !ok {
		reply.Error = fmt.Sprintf("method %q not found", msg.Method)
	} else if res, err := m(c.ctx, msg.Args); err != nil {
		reply.Error = err.Error()
	} else if res != nil {
		b, err := json.Marshal(res)
		if err != nil {
			reply.Error = fmt.Sprintf("encode result: %v", err)
		} else {
			reply.Result = b
		}
	}

	if err := wsjson.Write(c.ctx, c.ws, reply); err != nil {
		c.log.WithError(err).WithField("method", msg.Method).Debug("hostrpc: reply not sent")
	}
}
