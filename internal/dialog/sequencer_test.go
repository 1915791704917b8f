package dialog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzakharov/bookstore-admin/internal/dialog"
)

// fakePresenter tracks which dialogs it believes are visible and fails the
// test the moment two are visible at once.
type fakePresenter struct {
	t          *testing.T
	seq        *dialog.Sequencer
	autoNotify bool

	mu      sync.Mutex
	visible map[dialog.ID]bool
	events  []string
}

func newFakePresenter(t *testing.T, autoNotify bool) *fakePresenter {
	return &fakePresenter{t: t, autoNotify: autoNotify, visible: map[dialog.ID]bool{}}
}

func (p *fakePresenter) Show(id dialog.ID, payload any) {
	p.mu.Lock()
	p.visible[id] = true
	p.events = append(p.events, "show:"+string(id))
	if len(p.visible) > 1 {
		p.t.Errorf("two dialogs visible at once: %v", p.visible)
	}
	p.mu.Unlock()
}

func (p *fakePresenter) Hide(id dialog.ID) {
	p.mu.Lock()
	delete(p.visible, id)
	p.events = append(p.events, "hide:"+string(id))
	p.mu.Unlock()
	if p.autoNotify && p.seq != nil {
		p.seq.NotifyClosed(id)
	}
}

func (p *fakePresenter) eventLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	copy(out, p.events)
	return out
}

func TestSequencer_OpenExclusive_ClosesCurrentFirst(t *testing.T) {
	p := newFakePresenter(t, true)
	seq := dialog.NewSequencer(p, 50*time.Millisecond)
	p.seq = seq

	require.NoError(t, seq.OpenExclusive(context.Background(), dialog.OrderDetail, nil))
	require.NoError(t, seq.OpenExclusive(context.Background(), dialog.AddToStock, nil))

	assert.Equal(t, dialog.AddToStock, seq.Open())
	assert.Equal(t, []string{
		"show:" + string(dialog.OrderDetail),
		"hide:" + string(dialog.OrderDetail),
		"show:" + string(dialog.AddToStock),
	}, p.eventLog())
}

func TestSequencer_OpenExclusive_SameDialogReRenders(t *testing.T) {
	p := newFakePresenter(t, true)
	seq := dialog.NewSequencer(p, 50*time.Millisecond)
	p.seq = seq

	require.NoError(t, seq.OpenExclusive(context.Background(), dialog.NewBooks, []int{1, 2}))
	require.NoError(t, seq.OpenExclusive(context.Background(), dialog.NewBooks, []int{2}))

	assert.Equal(t, dialog.NewBooks, seq.Open())
	assert.Equal(t, []string{
		"show:" + string(dialog.NewBooks),
		"show:" + string(dialog.NewBooks),
	}, p.eventLog(), "re-opening the open dialog must not hide it")
}

func TestSequencer_FallbackDelayWhenPresenterNeverSignals(t *testing.T) {
	p := newFakePresenter(t, false) // never calls NotifyClosed
	seq := dialog.NewSequencer(p, 20*time.Millisecond)

	require.NoError(t, seq.OpenExclusive(context.Background(), dialog.Compose, nil))

	start := time.Now()
	require.NoError(t, seq.OpenExclusive(context.Background(), dialog.OrderDetail, nil))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond, "must wait out the fallback delay")
	assert.Equal(t, dialog.OrderDetail, seq.Open())
}

func TestSequencer_ContextCancelledDuringWait(t *testing.T) {
	p := newFakePresenter(t, false)
	seq := dialog.NewSequencer(p, time.Second)

	require.NoError(t, seq.OpenExclusive(context.Background(), dialog.Compose, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := seq.OpenExclusive(ctx, dialog.OrderDetail, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSequencer_CloseAll(t *testing.T) {
	p := newFakePresenter(t, true)
	seq := dialog.NewSequencer(p, 50*time.Millisecond)
	p.seq = seq

	// No-op when nothing is open.
	seq.CloseAll()
	assert.Empty(t, p.eventLog())

	require.NoError(t, seq.OpenExclusive(context.Background(), dialog.NewBooks, nil))
	seq.CloseAll()
	seq.CloseAll()

	assert.Equal(t, dialog.None, seq.Open())
	assert.Equal(t, []string{
		"show:" + string(dialog.NewBooks),
		"hide:" + string(dialog.NewBooks),
	}, p.eventLog(), "second CloseAll must be a no-op")
}

func TestSequencer_NotifyClosedForUntrackedDialog(t *testing.T) {
	p := newFakePresenter(t, true)
	seq := dialog.NewSequencer(p, 50*time.Millisecond)
	p.seq = seq

	// Presenter reports a close the sequencer never asked for.
	seq.NotifyClosed(dialog.AddToStock)
	assert.Equal(t, dialog.None, seq.Open())

	require.NoError(t, seq.OpenExclusive(context.Background(), dialog.Compose, nil))
	seq.NotifyClosed(dialog.Compose)
	assert.Equal(t, dialog.None, seq.Open(), "operator-initiated close is observed")
}

func TestSequencer_SequentialOpensNeverOverlap(t *testing.T) {
	p := newFakePresenter(t, true)
	seq := dialog.NewSequencer(p, 50*time.Millisecond)
	p.seq = seq

	ids := []dialog.ID{dialog.Compose, dialog.OrderDetail, dialog.NewBooks, dialog.AddToStock, dialog.Compose}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id dialog.ID) {
			defer wg.Done()
			_ = seq.OpenExclusive(context.Background(), id, nil)
		}(id)
	}
	wg.Wait()

	// The fakePresenter errors the test if two dialogs were ever visible at
	// the same instant; here we only check something ended up open.
	assert.NotEqual(t, dialog.None, seq.Open())
}
