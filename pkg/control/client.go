package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/creasty/defaults"

	"github.com/clusterfleet/midplane/pkg/events"
	"github.com/clusterfleet/midplane/pkg/types"
)

// Options configures the socket client.
type Options struct {
	// SocketPath is the control plane's unix domain socket.
	SocketPath string `default:"/var/run/midplane/midplane.sock"`

	// StartedSentinel exists once the control plane has finished booting.
	// Hooks that fire before it appears skip their work rather than fail.
	StartedSentinel string `default:"/var/run/midplane/.started"`

	// CallTimeout bounds every individual call. A call that exceeds it is
	// treated as failed; the client never retries on its own.
	CallTimeout time.Duration `default:"50s"`
}

// DefaultOptions returns Options populated with defaults.
func DefaultOptions() (o Options) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	return
}

// SocketClient talks JSON-RPC to the control plane over its unix domain
// socket. The connection is established lazily on first call. Calls are
// serialized; the hook binaries are single-threaded so contention is nil.
type SocketClient struct {
	opts Options

	mu     sync.Mutex
	conn   net.Conn
	enc    *json.Encoder
	dec    *json.Decoder
	nextID uint64
}

// NewSocketClient creates a client without connecting.
func NewSocketClient(opts Options) *SocketClient {
	if opts.SocketPath == "" {
		opts = DefaultOptions()
	}
	return &SocketClient{opts: opts}
}

// Available reports whether the control plane has completed startup. It only
// consults the started sentinel; the socket itself is probed on first call.
func (c *SocketClient) Available() bool {
	_, err := os.Stat(c.opts.StartedSentinel)
	return err == nil
}

// Close closes the underlying connection if one was established.
func (c *SocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.enc = nil
	c.dec = nil
	return err
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// dial connects to the control plane socket. Caller holds c.mu.
func (c *SocketClient) dial() error {
	conn, err := net.DialTimeout("unix", c.opts.SocketPath, c.opts.CallTimeout)
	if err != nil {
		return err
	}
	c.conn = conn
	c.enc = json.NewEncoder(conn)
	c.dec = json.NewDecoder(conn)
	return nil
}

// call performs one request/response round trip. The deadline is the sooner
// of the context deadline and CallTimeout. A broken connection is dropped so
// the next call redials.
func (c *SocketClient) call(ctx context.Context, method string, out any, params ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dial(); err != nil {
			return &TransportError{Method: method, Err: err}
		}
	}

	deadline := time.Now().Add(c.opts.CallTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return &TransportError{Method: method, Err: err}
	}

	c.nextID++
	req := request{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params}
	if err := c.enc.Encode(req); err != nil {
		c.drop()
		return &TransportError{Method: method, Err: err}
	}

	var resp response
	if err := c.dec.Decode(&resp); err != nil {
		c.drop()
		return &TransportError{Method: method, Err: err}
	}
	if resp.Error != nil {
		return &CallError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// drop discards a connection whose state is unknown. Caller holds c.mu.
func (c *SocketClient) drop() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.enc = nil
	c.dec = nil
}

// Ping verifies connectivity to the control plane.
func (c *SocketClient) Ping(ctx context.Context) error {
	return c.call(ctx, "core.ping", nil)
}

// QueryService returns the actual run state and enabled flag of a service.
func (c *SocketClient) QueryService(ctx context.Context, name string) (types.ServiceState, error) {
	var state types.ServiceState
	err := c.call(ctx, "service.query", &state, name)
	return state, err
}

// StartService starts a service.
func (c *SocketClient) StartService(ctx context.Context, name string) error {
	return c.call(ctx, "service.start", nil, name, map[string]any{"silent": false})
}

// RestartService restarts a service regardless of its current state.
func (c *SocketClient) RestartService(ctx context.Context, name string) error {
	return c.call(ctx, "service.restart", nil, name)
}

// StopService stops a service.
func (c *SocketClient) StopService(ctx context.Context, name string) error {
	return c.call(ctx, "service.stop", nil, name)
}

// SetServiceEnabled updates the boot-time enable flag of a service.
func (c *SocketClient) SetServiceEnabled(ctx context.Context, name string, enabled bool) error {
	return c.call(ctx, "service.update", nil, name, map[string]any{"enable": enabled})
}

// EmitClusterEvent relays an event record to the control plane's cluster
// event processor.
func (c *SocketClient) EmitClusterEvent(ctx context.Context, record events.Record) error {
	return c.call(ctx, "cluster.event.process", nil, record)
}

// SharedVolumeConfig fetches the shared volume identity from the control
// plane. Used as a fallback when the local volume info file is absent.
func (c *SocketClient) SharedVolumeConfig(ctx context.Context) (types.VolumeInfo, error) {
	var info types.VolumeInfo
	err := c.call(ctx, "cluster.shared_volume.config", &info)
	return info, err
}
