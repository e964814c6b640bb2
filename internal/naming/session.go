// Package naming is the synchronization point where unresolved clusters are
// presented to a human. It is a hard barrier in the pipeline: nothing past
// clustering proceeds until every pending cluster is named or skipped.
package naming

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-organizer/internal/cluster"
	"github.com/kozaktomas/face-organizer/internal/faces"
)

// ErrAbandoned is returned by Wait when the session closes before all
// clusters are resolved. The remaining clusters are treated as skipped, not
// as a fatal error.
var ErrAbandoned = errors.New("naming session abandoned")

// ErrClosed is returned by Submit after the session has finished.
var ErrClosed = errors.New("naming session closed")

// Request is one cluster awaiting a decision, carrying the representative
// face (source path + crop box) the human is shown.
type Request struct {
	ClusterID      string       `json:"cluster_id"`
	Representative faces.Record `json:"representative"`
	MemberCount    int          `json:"member_count"`
}

// Session collects name-or-skip decisions for unresolved clusters. Decisions
// are applied to the people store immediately, so names persist with the
// cluster across runs; a resumed session never re-asks about a cluster that
// already has a stored name.
type Session struct {
	store *cluster.Store

	mu      sync.Mutex
	pending map[string]Request
	order   []string
	closed  bool
	doneCh  chan struct{}
}

// NewSession builds a session over the store's unresolved clusters. Clusters
// with a stored name or skip decision are not queued.
func NewSession(store *cluster.Store) *Session {
	s := &Session{
		store:   store,
		pending: make(map[string]Request),
		doneCh:  make(chan struct{}),
	}

	for _, c := range store.Unresolved() {
		if len(c.Members) == 0 {
			continue
		}
		req := Request{
			ClusterID:      c.ID,
			Representative: c.Members[0],
			MemberCount:    len(c.Members),
		}
		s.pending[c.ID] = req
		s.order = append(s.order, c.ID)
	}

	if len(s.pending) == 0 {
		close(s.doneCh)
	}
	return s
}

// Pending returns the outstanding requests in cluster creation order.
func (s *Session) Pending() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, 0, len(s.pending))
	for _, id := range s.order {
		if req, ok := s.pending[id]; ok {
			out = append(out, req)
		}
	}
	return out
}

// Submit records a decision for a cluster. An empty name means skip. The
// decision is written to the people store before the request is retired, so
// an interrupt after Submit never loses the answer.
func (s *Session) Submit(clusterID, name string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.pending[clusterID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("cluster %s is not pending", clusterID)
	}
	s.mu.Unlock()

	var err error
	if name == "" {
		err = s.store.SetSkipped(clusterID)
	} else {
		err = s.store.SetName(clusterID, name)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.pending, clusterID)
	if len(s.pending) == 0 && !s.closed {
		s.closed = true
		close(s.doneCh)
	}
	s.mu.Unlock()
	return nil
}

// Abandon closes the session, marking every remaining pending cluster as
// skipped.
func (s *Session) Abandon() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	remaining := make([]string, 0, len(s.pending))
	for id := range s.pending {
		remaining = append(remaining, id)
	}
	sort.Strings(remaining)
	s.pending = make(map[string]Request)
	s.closed = true
	close(s.doneCh)
	s.mu.Unlock()

	for _, id := range remaining {
		_ = s.store.SetSkipped(id)
	}
}

// Wait blocks until all pending clusters are resolved or the context is
// cancelled. On cancellation the session is abandoned and ErrAbandoned is
// returned.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		s.Abandon()
		return ErrAbandoned
	}
}

// Resolver produces a decision for one request: the person's name, or an
// empty string to skip. Returning an error abandons the session.
type Resolver func(Request) (string, error)

// Run drives the session with a synchronous resolver (the terminal prompt).
// Each decision is submitted as it is made; a resolver error abandons the
// rest and returns ErrAbandoned.
func (s *Session) Run(ctx context.Context, resolve Resolver) error {
	for _, req := range s.Pending() {
		if ctx.Err() != nil {
			s.Abandon()
			return ErrAbandoned
		}

		s.mu.Lock()
		_, stillPending := s.pending[req.ClusterID]
		s.mu.Unlock()
		if !stillPending {
			// Resolved concurrently through another surface.
			continue
		}

		name, err := resolve(req)
		if err != nil {
			s.Abandon()
			return ErrAbandoned
		}
		if err := s.Submit(req.ClusterID, SanitizeName(name)); err != nil && !errors.Is(err, ErrClosed) {
			continue
		}
	}
	return s.Wait(ctx)
}
