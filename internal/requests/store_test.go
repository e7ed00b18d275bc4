package requests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gate returns a request func that blocks until release is closed.
func gate[T any](v T, err error) (Func[T], chan struct{}) {
	release := make(chan struct{})
	return func(ctx context.Context) (T, error) {
		select {
		case <-release:
			return v, err
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}, release
}

func TestStore_SubmitAndObserve(t *testing.T) {
	s := NewStore[string](nil)
	defer s.Close()

	fn, release := gate("done", nil)
	require.NoError(t, s.Submit("a", fn))

	st, ok := s.Status("a")
	require.True(t, ok)
	assert.True(t, st.Loading)

	close(release)
	st, err := s.Wait(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, st.Loading)
	assert.Equal(t, "done", st.Data)
	assert.NoError(t, st.Err)
	assert.False(t, st.CompletedAt.IsZero())
}

func TestStore_Error(t *testing.T) {
	s := NewStore[int](nil)
	defer s.Close()

	boom := errors.New("boom")
	require.NoError(t, s.Submit("k", func(context.Context) (int, error) { return 0, boom }))

	st, err := s.Wait(context.Background(), "k")
	require.NoError(t, err)
	assert.ErrorIs(t, st.Err, boom)
}

func TestStore_ClearDropsLateResult(t *testing.T) {
	s := NewStore[string](nil)
	defer s.Close()

	fn, release := gate("late", nil)
	require.NoError(t, s.Submit("a", fn))
	s.Clear("a")

	close(release)
	// Resubmit and wait for a second request to make sure the first ran.
	require.NoError(t, s.Submit("b", func(context.Context) (string, error) { return "b", nil }))
	_, err := s.Wait(context.Background(), "b")
	require.NoError(t, err)

	_, ok := s.Status("a")
	assert.False(t, ok, "cleared key must stay empty")
}

func TestStore_ResubmitSupersedes(t *testing.T) {
	s := NewStore[string](nil)
	defer s.Close()

	first, releaseFirst := gate("first", nil)
	second, releaseSecond := gate("second", nil)

	require.NoError(t, s.Submit("k", first))
	require.NoError(t, s.Submit("k", second))

	close(releaseSecond)
	st, err := s.Wait(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "second", st.Data)

	close(releaseFirst)
	time.Sleep(10 * time.Millisecond)
	st, _ = s.Status("k")
	assert.Equal(t, "second", st.Data, "superseded result must be ignored")
}

func TestStore_WaitErrors(t *testing.T) {
	s := NewStore[string](nil)
	defer s.Close()

	_, err := s.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownKey)

	fn, release := gate("x", nil)
	defer close(release)
	require.NoError(t, s.Submit("slow", fn))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.Wait(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_CloseCancelsRunning(t *testing.T) {
	s := NewStore[string](NewLimiter(1, time.Second))

	fn, _ := gate("never", nil)
	require.NoError(t, s.Submit("k", fn))

	s.Close()

	st, ok := s.Status("k")
	require.True(t, ok)
	assert.False(t, st.Loading)
	assert.ErrorIs(t, st.Err, context.Canceled)
	assert.ErrorIs(t, s.Submit("k", fn), ErrClosed)
}
