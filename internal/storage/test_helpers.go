package storage

import (
	"context"
	"testing"
	"time"
)

// testContext returns a context that expires well before go test's own
// timeout, so a wedged store call fails the test instead of the binary.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
