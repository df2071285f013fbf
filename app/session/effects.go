package session

import (
	"sync"
)

type Style string

const (
	StyleAnimated Style = "animated"
	StyleSuccess  Style = "success"
	StyleFailure  Style = "failure"
)

type Notification struct {
	Style   Style  `json:"style"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// Effects is the sink for everything the host has to carry out on the
// session's behalf. Calls are fire-and-forget.
type Effects interface {
	Copy(text string)
	Open(target string)
	Notify(n Notification)
}

type EffectKind string

const (
	EffectCopy   EffectKind = "copy"
	EffectOpen   EffectKind = "open"
	EffectNotify EffectKind = "notify"
)

type Effect struct {
	Kind         EffectKind    `json:"kind"`
	Text         string        `json:"text,omitempty"`
	Target       string        `json:"target,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// Recorder collects effects in the order they were requested.
type Recorder struct {
	mu      sync.Mutex
	effects []Effect
}

func NewRecorder() *Recorder {
	return &Recorder{effects: make([]Effect, 0)}
}

func (r *Recorder) Copy(text string) {
	r.add(Effect{Kind: EffectCopy, Text: text})
}

func (r *Recorder) Open(target string) {
	r.add(Effect{Kind: EffectOpen, Target: target})
}

func (r *Recorder) Notify(n Notification) {
	r.add(Effect{Kind: EffectNotify, Notification: &n})
}

func (r *Recorder) Effects() []Effect {
	r.mu.Lock()
	defer r.mu.Unlock()

	effects := make([]Effect, len(r.effects))
	copy(effects, r.effects)
	return effects
}

func (r *Recorder) add(effect Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, effect)
}

// Discard drops every effect. Background tasks use it since nobody is
// watching their notifications.
type Discard struct{}

func (Discard) Copy(string)         {}
func (Discard) Open(string)         {}
func (Discard) Notify(Notification) {}
