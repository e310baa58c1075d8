package extract

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nonEmpty(s string) bool { return s != "" }

func TestRaceFirstReturnsFastestAcceptableResult(t *testing.T) {
	slow := func(ctx context.Context) (string, error) {
		select {
		case <-time.After(500 * time.Millisecond):
			return "slow", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	fast := func(ctx context.Context) (string, error) {
		return "fast", nil
	}

	got, ok := raceFirst(context.Background(), []func(context.Context) (string, error){slow, fast}, nonEmpty)
	require.True(t, ok)
	assert.Equal(t, "fast", got)
}

func TestRaceFirstSkipsFailuresAndEmptyResults(t *testing.T) {
	failing := func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("boom")
	}
	empty := func(ctx context.Context) (string, error) {
		return "", nil
	}
	winner := func(ctx context.Context) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	got, ok := raceFirst(context.Background(), []func(context.Context) (string, error){failing, empty, winner}, nonEmpty)
	require.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestRaceFirstAllFail(t *testing.T) {
	failing := func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("boom")
	}
	got, ok := raceFirst(context.Background(), []func(context.Context) (string, error){failing, failing}, nonEmpty)
	assert.False(t, ok)
	assert.Equal(t, "", got)
}

func TestRaceFirstHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocked := func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		_, ok := raceFirst(ctx, []func(context.Context) (string, error){blocked}, nonEmpty)
		assert.False(t, ok)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("raceFirst did not return after cancellation")
	}
}
