package shutdown

import (
	"context"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithSignalsCancelsOnSIGTERM(t *testing.T) {
	ctx, cancel := WithSignals(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGTERM")
	}
}

func TestWithSignalsCancelFunc(t *testing.T) {
	ctx, cancel := WithSignals(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	cancel()
	<-ctx.Done()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}
