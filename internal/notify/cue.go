// Package notify plays short audible cues when a message is sent and when a
// reply arrives.
package notify

import (
	"io"
	"sync"
)

// Cue names an audible event
type Cue string

const (
	CueSend    Cue = "send"
	CueReceive Cue = "receive"
)

// Player plays cues. Play never blocks on slow output and never fails.
type Player interface {
	Play(cue Cue)
}

// BellPlayer rings the terminal bell once per cue
type BellPlayer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBellPlayer writes the bell character to w
func NewBellPlayer(w io.Writer) *BellPlayer {
	return &BellPlayer{w: w}
}

func (p *BellPlayer) Play(cue Cue) {
	if p == nil || p.w == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, "\a")
}

// NopPlayer ignores every cue
type NopPlayer struct{}

func (NopPlayer) Play(Cue) {}

// New returns a bell player on w when enabled, otherwise a NopPlayer
func New(enabled bool, w io.Writer) Player {
	if !enabled || w == nil {
		return NopPlayer{}
	}
	return NewBellPlayer(w)
}

// Recorder remembers the cues it was asked to play
type Recorder struct {
	mu   sync.Mutex
	cues []Cue
}

func (r *Recorder) Play(cue Cue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, cue)
}

// Cues returns the cues played so far, oldest first
func (r *Recorder) Cues() []Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Cue, len(r.cues))
	copy(out, r.cues)
	return out
}
