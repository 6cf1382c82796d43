package daemon

import (
	"sync"
	"time"
)

// pendingRequest tracks one in-flight CLI request forwarded to the worker,
// so the worker's asynchronous reply (correlated only by requestId) can be
// routed back to the right waiting caller, and so a deadline can fire if
// the worker never replies (spec §4.1 "request/response correlation").
type pendingRequest struct {
	reply   chan workerReply
	expires time.Time
}

// workerReply is what a pendingRequest resolves to: either the worker's
// envelope fields, or a local timeout/disconnect synthesized by the
// PendingManager itself.
type workerReply struct {
	ok        bool
	data      []byte
	errorCode string
	errorMsg  string
}

// PendingManager correlates outstanding requestIds to waiting callers,
// grounded on the teacher's heartbeat.go pattern of a map guarded by a
// single mutex with a periodic sweep for expired entries.
type PendingManager struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewPendingManager creates an empty PendingManager.
func NewPendingManager() *PendingManager {
	return &PendingManager{pending: make(map[string]*pendingRequest)}
}

// Register creates a waitable slot for requestID with the given timeout
// and returns the channel to receive its eventual reply on.
func (p *PendingManager) Register(requestID string, timeout time.Duration) <-chan workerReply {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr := &pendingRequest{
		reply:   make(chan workerReply, 1),
		expires: time.Now().Add(timeout),
	}
	p.pending[requestID] = pr
	return pr.reply
}

// Resolve delivers a worker's reply to the registered waiter for
// requestID, if one still exists (it may have already timed out).
func (p *PendingManager) Resolve(requestID string, reply workerReply) {
	p.mu.Lock()
	pr, ok := p.pending[requestID]
	if ok {
		delete(p.pending, requestID)
	}
	p.mu.Unlock()
	if ok {
		pr.reply <- reply
	}
}

// Forget removes requestID without delivering anything, used when the
// caller gives up waiting (its own deadline fired first).
func (p *PendingManager) Forget(requestID string) {
	p.mu.Lock()
	delete(p.pending, requestID)
	p.mu.Unlock()
}

// SweepExpired resolves every pending request whose deadline has passed
// with a synthetic timeout reply, then removes it. Called periodically so
// a worker that silently hangs doesn't leak goroutines waiting forever.
func (p *PendingManager) SweepExpired() {
	now := time.Now()
	p.mu.Lock()
	var expired []*pendingRequest
	for id, pr := range p.pending {
		if now.After(pr.expires) {
			expired = append(expired, pr)
			delete(p.pending, id)
		}
	}
	p.mu.Unlock()

	for _, pr := range expired {
		pr.reply <- workerReply{ok: false, errorCode: "CDP_TIMEOUT", errorMsg: "worker did not reply before the command deadline"}
	}
}

// FailAll resolves every still-pending request with a connection-error
// reply, used when the worker's pipe drops unexpectedly.
func (p *PendingManager) FailAll(code, msg string) {
	p.mu.Lock()
	var all []*pendingRequest
	for id, pr := range p.pending {
		all = append(all, pr)
		delete(p.pending, id)
	}
	p.mu.Unlock()

	for _, pr := range all {
		pr.reply <- workerReply{ok: false, errorCode: code, errorMsg: msg}
	}
}
