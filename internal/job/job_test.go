package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecayer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeDecayer) ApplyInactivityDecay(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("no deadline")
	}
	return 2, f.err
}

type fakeExpirer struct {
	calls atomic.Int32
}

func (f *fakeExpirer) ExpireInvites(context.Context) (int64, error) {
	f.calls.Add(1)
	return 1, nil
}

func TestScheduler_RunsJobsImmediately(t *testing.T) {
	d := &fakeDecayer{}
	e := &fakeExpirer{}

	s, err := NewScheduler(d, e, Intervals{Decay: time.Hour, InviteExpiry: time.Hour})
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })

	assert.Eventually(t, func() bool {
		return d.calls.Load() >= 1 && e.calls.Load() >= 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRunDecay_ToleratesErrors(t *testing.T) {
	d := &fakeDecayer{err: errors.New("db down")}
	withTimeout(func(ctx context.Context) { runDecay(ctx, d) })()
	assert.Equal(t, int32(1), d.calls.Load())
}
