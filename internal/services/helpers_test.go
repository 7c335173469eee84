package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"financefam/internal/core"
	"financefam/internal/storage/memory"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// replayHistory recomputes a balance from its movement history.
func replayHistory(history []core.HistoryEntry) core.Money {
	var total core.Money
	for _, h := range history {
		switch h.Type {
		case core.Deposit:
			total = total.Add(h.Amount)
		case core.Withdraw:
			total = total.Sub(h.Amount)
		}
	}
	return total
}

// seqIDs returns id-1, id-2, ... and is safe for concurrent use.
func seqIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []core.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Event(nil), p.events...)
}

type failingInsertStore struct {
	*memory.Store
}

func (failingInsertStore) InsertTransactions(context.Context, []core.Transaction) error {
	return errors.New("disk full")
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

var (
	userAna   = core.User{ID: "u-ana", Name: "Ana", Role: "parent"}
	userBruno = core.User{ID: "u-bruno", Name: "Bruno", Role: "child"}
	adminRoot = core.Admin{ID: "a-root", Username: "root", Password: "secret"}
)

func userSession(u core.User) core.Session   { return core.Session{User: &u} }
func adminSession(a core.Admin) core.Session { return core.Session{Admin: &a} }

func cents(c int64) core.Money { return core.Money{Cents: c} }

func domainMessage(err error) string {
	var de *core.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
