package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/arnforge/modkit/internal/platform/errs"
)

// ErrTransport marks a failure in the underlying connection itself, as
// opposed to an ErrorPayload returned by the remote side for a specific call.
var ErrTransport = errors.New("ipc transport error")

// network is the net.Dial/net.Listen network name used for the transport.
// Go's net package has exposed "unix" (AF_UNIX) sockets on Windows since
// Go 1.12, so a single network type works on every runtime.GOOS without a
// Windows-named-pipe-specific code path (named pipes would need a cgo or
// third-party dependency none of the teacher's/pack's go.mod files carry).
const network = "unix"

// Listen opens a listener at path, creating its parent directory (the
// convention in SocketPath always nests under a platform-owned
// subdirectory) and removing any stale socket file left behind by a
// previous, uncleanly terminated process.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ipc listen %s: %w", path, err)
	}

	_ = os.Remove(path)

	ln, err := net.Listen(network, path)
	if err != nil {
		return nil, fmt.Errorf("ipc listen %s: %w", path, err)
	}

	return ln, nil
}

var unsafeSocketChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SocketPath builds the conventional transport path for a module's
// out-of-process worker (§6.5: `<platform-tmp>/adc-platform/<safe-module>-
// <version>-<lang>`). module is sanitized to the charset a filename can
// safely use across platforms.
func SocketPath(platformTmp, module, version, lang string) string {
	safeModule := unsafeSocketChars.ReplaceAllString(module, "_")

	return filepath.Join(platformTmp, "adc-platform", fmt.Sprintf("%s-%s-%s", safeModule, version, lang))
}

// Dial connects to a listener previously opened with Listen.
func Dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer

	conn, err := d.DialContext(ctx, network, path)
	if err != nil {
		return nil, fmt.Errorf("ipc dial %s: %w", path, err)
	}

	return conn, nil
}

// Conn wraps a net.Conn with the line-delimited JSON codec both sides speak
// (§6.5: "one JSON object per line via bufio.Scanner/encoding/json").
type Conn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	writeMu sync.Mutex
}

// NewConn wraps raw.
func NewConn(raw net.Conn) *Conn {
	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	return &Conn{conn: raw, scanner: scanner}
}

// WriteRequest writes req as a single JSON line, stamping its Type.
func (c *Conn) WriteRequest(req Request) error {
	req.Type = TypeRequest

	return c.writeLine(req)
}

// WriteResponse writes resp as a single JSON line, stamping Type according
// to whether Error is set.
func (c *Conn) WriteResponse(resp Response) error {
	if resp.Error != nil {
		resp.Type = TypeError
	} else {
		resp.Type = TypeResponse
	}

	return c.writeLine(resp)
}

func (c *Conn) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("ipc write: %w", err)
	}

	return nil
}

// ReadRequest reads the next line as a Request.
func (c *Conn) ReadRequest() (Request, error) {
	var req Request
	if err := c.readLine(&req); err != nil {
		return Request{}, err
	}

	return req, nil
}

// ReadResponse reads the next line as a Response.
func (c *Conn) ReadResponse() (Response, error) {
	var resp Response
	if err := c.readLine(&resp); err != nil {
		return Response{}, err
	}

	return resp, nil
}

func (c *Conn) readLine(v any) error {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("ipc read: %w", err)
		}

		return fmt.Errorf("%w: connection closed", ErrTransport)
	}

	return json.Unmarshal(c.scanner.Bytes(), v)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Client implements worker.RemoteCaller over a single long-lived Conn,
// matching pending calls to replies by request ID so concurrent Call
// invocations can share one connection (§4.13 "Out-of-process/cross-language
// mode").
type Client struct {
	conn *Conn
	next uint64

	mu      sync.Mutex
	pending map[string]chan Response

	readOnce sync.Once
}

// NewClient wraps conn and starts its background read loop.
func NewClient(conn *Conn) *Client {
	c := &Client{conn: conn, pending: make(map[string]chan Response)}
	c.readOnce.Do(func() { go c.readLoop() })

	return c
}

func (c *Client) readLoop() {
	for {
		resp, err := c.conn.ReadResponse()
		if err != nil {
			c.failAllPending(err)

			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ch := range c.pending {
		ch <- Response{ID: id, Error: &ErrorPayload{Code: "transport", Message: err.Error()}}
		delete(c.pending, id)
	}
}

// Call implements worker.RemoteCaller.
func (c *Client) Call(ctx context.Context, method string, args []any) (any, error) {
	id := fmt.Sprintf("%d", atomic.AddUint64(&c.next, 1))

	reply := make(chan Response, 1)

	c.mu.Lock()
	c.pending[id] = reply
	c.mu.Unlock()

	if err := c.conn.WriteRequest(Request{ID: id, Method: method, Args: args}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()

		return nil, err
	}

	select {
	case resp := <-reply:
		if resp.Error != nil {
			if resp.Error.Code == "transport" {
				return nil, fmt.Errorf("%w: %s", ErrTransport, resp.Error.Message)
			}

			return nil, fmt.Errorf("ipc call %q failed: %s: %s", method, resp.Error.Code, resp.Error.Message)
		}

		return resp.Result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: call %q", errs.ErrTimeout, method)
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
