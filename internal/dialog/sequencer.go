// Package dialog serializes modal dialog visibility. Overlapping modals
// corrupt focus and backdrop state in the UI toolkit, so every dialog
// transition in the workflow goes through the Sequencer: at most one tracked
// dialog is open at any instant, and "close current, wait, open next" is a
// single serialized operation. The package knows nothing about business
// semantics.
package dialog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ID names one of the fixed set of tracked dialogs.
type ID string

const (
	Compose     ID = "purchase-order"
	OrderDetail ID = "order-detail"
	NewBooks    ID = "new-books"
	AddToStock  ID = "add-to-stock"
)

// None is the zero ID, reported when no dialog is open.
const None ID = ""

// Presenter is the opaque modal primitive. Show renders a dialog with its
// payload; Hide requests a close. The presenter reports the completed close
// transition back via Sequencer.NotifyClosed — that signal, not the Hide
// call, is what allows the next dialog to open. A presenter that cannot
// signal is covered by the fallback delay.
type Presenter interface {
	Show(id ID, payload any)
	Hide(id ID)
}

const defaultCloseWait = 300 * time.Millisecond

type Sequencer struct {
	presenter Presenter
	closeWait time.Duration

	// opMu serializes whole open/close transitions; mu guards the state.
	opMu sync.Mutex
	mu   sync.Mutex

	open    ID
	waiters map[ID]chan struct{}
}

func NewSequencer(p Presenter, closeWait time.Duration) *Sequencer {
	if closeWait <= 0 {
		closeWait = defaultCloseWait
	}
	return &Sequencer{
		presenter: p,
		closeWait: closeWait,
		waiters:   map[ID]chan struct{}{},
	}
}

// OpenExclusive opens the requested dialog, first closing whichever dialog
// is currently open and waiting for its close transition to finish. Opening
// the dialog that is already open just re-renders it with the new payload.
func (s *Sequencer) OpenExclusive(ctx context.Context, id ID, payload any) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	current := s.open
	if current == id {
		s.mu.Unlock()
		s.presenter.Show(id, payload)
		return nil
	}
	var closed chan struct{}
	if current != None {
		closed = make(chan struct{})
		s.waiters[current] = closed
	}
	s.mu.Unlock()

	if current != None {
		s.presenter.Hide(current)
		select {
		case <-closed:
		case <-time.After(s.closeWait):
			// Presenter never signalled; assume the close finished.
			log.Debug().Str("dialog", string(current)).Msg("dialog: close signal timed out, proceeding")
			s.mu.Lock()
			if s.open == current {
				s.open = None
			}
			delete(s.waiters, current)
			s.mu.Unlock()
		case <-ctx.Done():
			s.mu.Lock()
			delete(s.waiters, current)
			s.mu.Unlock()
			return fmt.Errorf("dialog: open %s interrupted: %w", id, ctx.Err())
		}
	}

	s.mu.Lock()
	s.open = id
	s.mu.Unlock()
	s.presenter.Show(id, payload)
	return nil
}

// CloseAll closes whichever dialog is open. No-op if none is.
func (s *Sequencer) CloseAll() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	current := s.open
	s.open = None
	s.mu.Unlock()

	if current != None {
		s.presenter.Hide(current)
	}
}

// NotifyClosed is called by the presenter once a dialog's close transition
// has finished. Tolerant of dialogs that are already considered closed.
func (s *Sequencer) NotifyClosed(id ID) {
	s.mu.Lock()
	if s.open == id {
		s.open = None
	}
	if ch, ok := s.waiters[id]; ok {
		close(ch)
		delete(s.waiters, id)
	}
	s.mu.Unlock()
}

// Open reports the currently open dialog, None if there is none.
func (s *Sequencer) Open() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}
