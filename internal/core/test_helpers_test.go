package core

import (
	"sync"
	"testing"
)

// captureOutbox records every enqueued message for assertions.
type captureOutbox struct {
	mu   sync.Mutex
	msgs []capturedMsg
}

type capturedMsg struct {
	Kind    string
	Payload any
}

func (o *captureOutbox) Enqueue(kind string, payload any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, capturedMsg{Kind: kind, Payload: payload})
}

func (o *captureOutbox) kinds() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.msgs))
	for _, m := range o.msgs {
		out = append(out, m.Kind)
	}
	return out
}

func (o *captureOutbox) count(kind string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, m := range o.msgs {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

func (o *captureOutbox) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = nil
}

// newTestSession builds a registered-looking session without going through
// the session registry.
func newTestSession(id int64, nickname string) (*PlayerSession, *captureOutbox) {
	out := &captureOutbox{}
	p := &Player{ID: id, Nickname: nickname, Mobile: MobileArmor}
	return NewSession(p, out), out
}

// envelopeKinds flattens the kinds of an envelope slice, in order.
func envelopeKinds(envs []Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Kind)
	}
	return out
}

func assertKinds(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected kinds %v, got %v", want, got)
		}
	}
}

func containsSession(list []*PlayerSession, s *PlayerSession) bool {
	for _, m := range list {
		if m == s {
			return true
		}
	}
	return false
}
