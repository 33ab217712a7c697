package kernel_test

import (
	"testing"

	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()

	return zap.NewNop()
}
