package qutex

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWaiter is a minimal qutex.Waiter for exercising the queue/positional
// rule in isolation, without pulling in lockvoker or continuation.
type fakeWaiter struct {
	id       int
	awakened atomic.Int32
}

func newFakeWaiter(id int) *fakeWaiter { return &fakeWaiter{id: id} }

func (w *fakeWaiter) Identity() any { return w.id }
func (w *fakeWaiter) Awaken(bool)   { w.awakened.Add(1) }

func TestRegisterUnregister(t *testing.T) {
	q := New("A")
	w := newFakeWaiter(1)
	h := q.RegisterInQueue(w)
	assert.Equal(t, 1, q.QueueLen())
	q.UnregisterFromQueue(h)
	assert.Equal(t, 0, q.QueueLen())
}

func TestUnregisterTwice_Panics(t *testing.T) {
	q := New("A")
	w := newFakeWaiter(1)
	h := q.RegisterInQueue(w)
	q.UnregisterFromQueue(h)
	assert.Panics(t, func() { q.UnregisterFromQueue(h) })
}

func TestTryAcquire_LoneWaiterAlwaysSucceeds(t *testing.T) {
	q := New("A")
	w := newFakeWaiter(1)
	q.RegisterInQueue(w)
	require.True(t, q.TryAcquire(w, 1))
	assert.True(t, q.IsOwned())
}

func TestTryAcquire_EmptyQueuePanics(t *testing.T) {
	q := New("A")
	w := newFakeWaiter(1)
	assert.Panics(t, func() { q.TryAcquire(w, 1) })
}

func TestTryAcquire_SizeOneMustBeFront(t *testing.T) {
	q := New("A")
	w1, w2 := newFakeWaiter(1), newFakeWaiter(2)
	q.RegisterInQueue(w1)
	q.RegisterInQueue(w2)

	// Q=2, S=1 -> rearWindow = 2, but S==1 branch requires strict front.
	assert.False(t, q.TryAcquire(w2, 1), "non-front size-1 waiter must not acquire")
	assert.True(t, q.TryAcquire(w1, 1), "front size-1 waiter must acquire")
}

// TestPositionalRule_MultiLockCanPassSmallerWaiter reproduces the spec's
// seed scenario: qutexes A, B; waiters registered in A as
// W1{A}, W2{A,B}, W3{A,B}, and in B as W2, W3. With S=2, A's rear window
// is floor(3/2)=1, so only W3 (the last entry) is excluded from the
// front fraction; W2 may acquire A despite not being at the front.
func TestPositionalRule_MultiLockCanPassSmallerWaiter(t *testing.T) {
	a := New("A")
	b := New("B")

	w1 := newFakeWaiter(1)
	w2 := newFakeWaiter(2)
	w3 := newFakeWaiter(3)

	a.RegisterInQueue(w1)
	a.RegisterInQueue(w2)
	a.RegisterInQueue(w3)
	b.RegisterInQueue(w2)
	b.RegisterInQueue(w3)

	// rearWindow for A = 3/2 = 1, last entry is w3, so w2 is not excluded.
	assert.True(t, a.TryAcquire(w2, 2), "w2 should pass A's positional rule")
	assert.True(t, b.TryAcquire(w2, 2), "w2 should acquire B, it is the front there")

	// w1 (S=1) must wait for the front; it is the front of A but A is owned.
	assert.False(t, a.TryAcquire(w1, 1), "A is already owned by w2")

	// B is already owned by w2 at this point, so w3's attempt fails
	// outright regardless of its position in B's queue.
	assert.False(t, b.TryAcquire(w3, 2))
}

func TestBackoff_RotatesFrontAndWakesNewFront(t *testing.T) {
	q := New("A")
	w1 := newFakeWaiter(1)
	w2 := newFakeWaiter(2)
	w3 := newFakeWaiter(3)
	q.RegisterInQueue(w1)
	q.RegisterInQueue(w2)
	q.RegisterInQueue(w3)

	// Force w1 to "fail" conceptually and back off with S=2: min(S,Q)=2,
	// so w1 moves to position 2 (after w2).
	q.Backoff(w1, 2)

	require.Equal(t, int32(1), w2.awakened.Load(), "new front must be woken")
	assert.Equal(t, int32(0), w3.awakened.Load())

	// w2 should now be front.
	assert.True(t, q.TryAcquire(w2, 2))
}

func TestBackoff_NonFrontWaiterDoesNotReorder(t *testing.T) {
	q := New("A")
	w1 := newFakeWaiter(1)
	w2 := newFakeWaiter(2)
	q.RegisterInQueue(w1)
	q.RegisterInQueue(w2)

	q.Backoff(w2, 2) // w2 is not front; no reorder, but front still woken.
	assert.True(t, q.TryAcquire(w1, 1))
}

func TestBackoff_LoneSizeOneWaiterPanics(t *testing.T) {
	q := New("A")
	w1 := newFakeWaiter(1)
	q.RegisterInQueue(w1)
	assert.Panics(t, func() { q.Backoff(w1, 1) })
}

func TestRelease_UnownedPanics(t *testing.T) {
	q := New("A")
	assert.Panics(t, func() { q.Release() })
}

func TestRelease_WakesFront(t *testing.T) {
	q := New("A")
	w1 := newFakeWaiter(1)
	w2 := newFakeWaiter(2)
	h1 := q.RegisterInQueue(w1)
	require.True(t, q.TryAcquire(w1, 1))
	q.UnregisterFromQueue(h1)

	q.RegisterInQueue(w2)
	q.Release()
	assert.Equal(t, int32(1), w2.awakened.Load())
}
