package dialog

import "github.com/rs/zerolog/log"

// LogPresenter is the headless presenter used when no UI transport is
// attached: it logs every transition and reports each close as finished
// immediately, so the sequencer never has to fall back to the fixed delay.
type LogPresenter struct {
	seq *Sequencer
}

func NewLogPresenter() *LogPresenter {
	return &LogPresenter{}
}

// Bind wires the presenter back to its sequencer for close signals.
func (p *LogPresenter) Bind(s *Sequencer) {
	p.seq = s
}

func (p *LogPresenter) Show(id ID, payload any) {
	log.Debug().Str("dialog", string(id)).Msg("dialog shown")
}

func (p *LogPresenter) Hide(id ID) {
	log.Debug().Str("dialog", string(id)).Msg("dialog hidden")
	if p.seq != nil {
		p.seq.NotifyClosed(id)
	}
}
