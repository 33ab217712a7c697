package ipc_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnforge/modkit/internal/platform/ipc"
)

func TestSocketPathSanitizesModuleName(t *testing.T) {
	path := ipc.SocketPath("/tmp", "my module!", "1.2.3", "python")

	assert.Equal(t, filepath.Join("/tmp", "adc-platform", "my_module_-1.2.3-python"), path)
}

func TestBufferValueRoundTrips(t *testing.T) {
	original := []byte("hello world")
	wire := ipc.NewBufferValue(original)

	assert.Equal(t, "Buffer", wire.Type)

	decoded, err := wire.Bytes()
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestAsBufferRecognizesWireShape(t *testing.T) {
	v := map[string]any{"__type": "Buffer", "data": "aGVsbG8="}

	buf, ok := ipc.AsBuffer(v)
	require.True(t, ok)

	decoded, err := buf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), decoded)
}

func TestAsBufferRejectsPlainMap(t *testing.T) {
	_, ok := ipc.AsBuffer(map[string]any{"foo": "bar"})
	assert.False(t, ok)
}

func TestClientCallRoundTripsOverSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "test.sock")

	ln, err := ipc.Listen(socketPath)
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() {
		_ = ipc.Serve(ctx, ln, func(_ context.Context, method string, args []any) (any, error) {
			if method == "Fail" {
				return nil, errors.New("deliberate failure")
			}

			return map[string]any{"echoed": method, "args": args}, nil
		}, zap.NewNop())
	}()

	conn, err := ipc.Dial(ctx, socketPath)
	require.NoError(t, err)
	defer conn.Close()

	client := ipc.NewClient(ipc.NewConn(conn))
	defer client.Close()

	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()

	result, err := client.Call(callCtx, "Echo", []any{"a", float64(1)})
	require.NoError(t, err)

	asMap, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Echo", asMap["echoed"])
}

func TestClientCallSurfacesHandlerError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "test2.sock")

	ln, err := ipc.Listen(socketPath)
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() {
		_ = ipc.Serve(ctx, ln, func(_ context.Context, method string, args []any) (any, error) {
			return nil, errors.New("deliberate failure")
		}, zap.NewNop())
	}()

	conn, err := ipc.Dial(ctx, socketPath)
	require.NoError(t, err)
	defer conn.Close()

	client := ipc.NewClient(ipc.NewConn(conn))
	defer client.Close()

	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()

	_, err = client.Call(callCtx, "Fail", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "deliberate failure")
}
