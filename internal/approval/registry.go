// Package approval tracks tool calls held for a human decision.
//
// The registry is process-local and never persisted: a restart drops every
// pending approval, and the waiting turn observes that as an expiry.
package approval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindgate/mindgate/internal/domain"
)

// PendingApproval is one tool call waiting for a decision.
type PendingApproval struct {
	ID          string                `json:"approval_id"`
	UserID      string                `json:"user_id"`
	SessionID   string                `json:"session_id"`
	Tool        domain.ToolDescriptor `json:"tool"`
	RequestedAt time.Time             `json:"requested_at"`
	ExpiresAt   time.Time             `json:"expires_at"`
	Status      domain.ApprovalStatus `json:"status"`
}

type entry struct {
	approval PendingApproval
	seq      uint64
	// outcome is buffered so the resolver never blocks on a waiter.
	// Exactly one value is ever sent: the first resolution wins.
	outcome chan domain.ApprovalStatus
}

// Registry holds pending approvals and rendezvouses resolvers with the
// turns that wait on them.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSeq uint64
	now     func() time.Time
}

// NewRegistry creates an empty registry. The clock is injectable for tests;
// pass nil for time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		entries: make(map[string]*entry),
		now:     now,
	}
}

// Register records a new pending approval with the given time to live.
func (r *Registry) Register(userID, sessionID string, tool domain.ToolDescriptor, ttl time.Duration) *PendingApproval {
	now := r.now()
	e := &entry{
		approval: PendingApproval{
			ID:          "ap_" + uuid.NewString()[:8],
			UserID:      userID,
			SessionID:   sessionID,
			Tool:        tool,
			RequestedAt: now,
			ExpiresAt:   now.Add(ttl),
			Status:      domain.ApprovalStatusPending,
		},
		outcome: make(chan domain.ApprovalStatus, 1),
	}

	r.mu.Lock()
	e.seq = r.nextSeq
	r.nextSeq++
	r.entries[e.approval.ID] = e
	r.mu.Unlock()

	ap := e.approval
	return &ap
}

// Get returns a snapshot of the approval, or nil when unknown.
func (r *Registry) Get(id string) *PendingApproval {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	ap := e.approval
	return &ap
}

// PendingFor lists the user's pending approvals in registration order.
func (r *Registry) PendingFor(userID string) []PendingApproval {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entry
	for _, e := range r.entries {
		if e.approval.UserID == userID && e.approval.Status == domain.ApprovalStatusPending {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	out := make([]PendingApproval, len(matched))
	for i, e := range matched {
		out[i] = e.approval
	}
	return out
}

// Resolve applies a decision. The first resolver wins; every later call
// reports why it lost. status must be approved or denied.
func (r *Registry) Resolve(id string, status domain.ApprovalStatus) error {
	if status != domain.ApprovalStatusApproved && status != domain.ApprovalStatusDenied {
		return fmt.Errorf("invalid resolution status: %s", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrApprovalNotFound, id)
	}
	switch e.approval.Status {
	case domain.ApprovalStatusPending:
	case domain.ApprovalStatusExpired:
		return fmt.Errorf("%w: %s", domain.ErrApprovalExpired, id)
	default:
		return fmt.Errorf("%w: %s is %s", domain.ErrApprovalAlreadyResolved, id, e.approval.Status)
	}

	e.approval.Status = status
	e.outcome <- status
	return nil
}

// Await blocks until the approval is resolved, expires, or the caller's
// context ends. Context cancellation marks the entry expired so an abandoned
// turn cannot leave a live approval behind. The entry is removed once the
// outcome is delivered.
func (r *Registry) Await(ctx context.Context, id string) domain.ApprovalStatus {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return domain.ApprovalStatusExpired
	}
	if e.approval.Status != domain.ApprovalStatusPending {
		status := e.approval.Status
		delete(r.entries, id)
		r.mu.Unlock()
		return status
	}
	expiresAt := e.approval.ExpiresAt
	r.mu.Unlock()

	timer := time.NewTimer(expiresAt.Sub(r.now()))
	defer timer.Stop()

	var status domain.ApprovalStatus
	select {
	case status = <-e.outcome:
	case <-timer.C:
		status = r.expire(id)
	case <-ctx.Done():
		status = r.expire(id)
	}

	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	return status
}

// expire transitions a pending entry to expired. When a resolution raced in
// first, the resolved status is returned instead.
func (r *Registry) expire(id string) domain.ApprovalStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return domain.ApprovalStatusExpired
	}
	if e.approval.Status == domain.ApprovalStatusPending {
		e.approval.Status = domain.ApprovalStatusExpired
		return domain.ApprovalStatusExpired
	}
	// Lost the race against a resolver; drain the delivered outcome.
	select {
	case status := <-e.outcome:
		return status
	default:
		return e.approval.Status
	}
}

// SweepExpired transitions pending entries past their deadline to expired
// and wakes any waiter. Entries already terminal from an earlier sweep or
// resolution are removed: they belong to turns that never reached Await, so
// no waiter will ever consume them. A newly expired entry survives until the
// next sweep, keeping late resolutions distinguishable from unknown IDs for
// one cycle. Returns how many entries were expired.
func (r *Registry) SweepExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.entries {
		if e.approval.Status != domain.ApprovalStatusPending {
			delete(r.entries, id)
			continue
		}
		if e.approval.ExpiresAt.After(now) {
			continue
		}
		e.approval.Status = domain.ApprovalStatusExpired
		select {
		case e.outcome <- domain.ApprovalStatusExpired:
		default:
		}
		n++
	}
	return n
}

// Run sweeps expired entries on a fixed interval until ctx ends. This keeps
// expiry moving even when no turn is blocked in Await.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepExpired(r.now())
		}
	}
}
