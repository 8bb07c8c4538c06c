package frontier

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tsurugo/webcorpus/internal/model"
)

// Sentinel errors for frontier state transitions.
var (
	// ErrClosed is returned by Take and Add after Close. It is the
	// shutdown signal for workers blocked on an empty or full queue.
	ErrClosed = errors.New("frontier is closed")

	// ErrInvalidTransition is returned when MarkVisited or MarkFailed
	// is called for a URL that is not in flight. It indicates a logic
	// defect in the caller, not an environmental condition.
	ErrInvalidTransition = errors.New("invalid url state transition")
)

// urlState is the internal lifecycle state of a seen URL.
type urlState uint8

const (
	statePending urlState = iota
	stateInFlight
	stateVisited
	stateFailed
)

// Policy decides whether a canonical URL may be enqueued. The robots
// evaluator implements it; a nil policy allows everything.
//
// Allowed may perform network I/O (fetching robots.txt); the frontier
// never calls it while holding its lock.
type Policy interface {
	Allowed(ctx context.Context, canonicalURL string) bool
}

// Frontier is the shared URL queue with duplicate-insert rejection.
// The zero value is not usable; use New.
type Frontier struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	// pending is the FIFO queue of URLs waiting to be fetched.
	// Insertion order is iteration order.
	pending []model.URLRecord

	// states records the lifecycle state of every URL ever seen.
	// Membership in this map is the "seen" check.
	states map[string]urlState

	// failedReasons holds the recorded reason per failed URL.
	failedReasons map[string]string

	// maxPending caps the pending queue; 0 means unbounded.
	maxPending int

	// policy gates inserts; may be nil.
	policy Policy

	closed bool

	visitedCount int
	inFlight     int
}

// New creates an empty Frontier. maxPending of 0 disables the
// backpressure cap; policy may be nil to allow all URLs.
func New(maxPending int, policy Policy) *Frontier {
	f := &Frontier{
		states:        make(map[string]urlState),
		failedReasons: make(map[string]string),
		maxPending:    maxPending,
		policy:        policy,
	}
	f.notEmpty = sync.NewCond(&f.mu)
	f.notFull = sync.NewCond(&f.mu)
	return f
}

// Add canonicalizes rawURL and inserts it at the tail of the pending
// queue. It returns false without error when the URL is already seen,
// cannot be fetched (bad scheme), or is rejected by the policy; these
// are expected outcomes, not failures. When the queue is at capacity
// Add blocks until space frees, the context ends, or the frontier
// closes.
func (f *Frontier) Add(ctx context.Context, rawURL string) (bool, error) {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		return false, nil //nolint:nilerr // unfetchable URLs are silently skipped
	}

	// Fast duplicate reject before the (potentially remote) policy
	// check so repeat links never trigger robots traffic.
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false, ErrClosed
	}
	if _, seen := f.states[canonical]; seen {
		f.mu.Unlock()
		return false, nil
	}
	f.mu.Unlock()

	// Policy may fetch robots.txt; never under the lock.
	if f.policy != nil && !f.policy.Allowed(ctx, canonical) {
		return false, nil
	}

	// Wake blocked waiters if the context ends while we wait.
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.notFull.Broadcast()
		f.mu.Unlock()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Re-check after the unlocked policy call: another worker may have
	// added the same URL meanwhile.
	if _, seen := f.states[canonical]; seen {
		return false, nil
	}

	for f.maxPending > 0 && len(f.pending) >= f.maxPending && !f.closed && ctx.Err() == nil {
		f.notFull.Wait()
	}
	if f.closed {
		return false, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, seen := f.states[canonical]; seen {
		return false, nil
	}

	f.pending = append(f.pending, model.URLRecord{
		URL:          canonical,
		Status:       model.StatusQueued,
		DiscoveredAt: time.Now().UTC(),
	})
	f.states[canonical] = statePending
	f.notEmpty.Signal()
	return true, nil
}

// Take removes and returns the head of the pending queue, moving it to
// the in-flight set. It blocks while the queue is empty and returns
// ErrClosed once the frontier is closed, releasing every waiter.
func (f *Frontier) Take(ctx context.Context) (string, error) {
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.notEmpty.Broadcast()
		f.mu.Unlock()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.pending) == 0 && !f.closed && ctx.Err() == nil {
		f.notEmpty.Wait()
	}
	if f.closed {
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rec := f.pending[0]
	f.pending = f.pending[1:]
	f.states[rec.URL] = stateInFlight
	f.inFlight++
	f.notFull.Signal()
	return rec.URL, nil
}

// MarkVisited transitions an in-flight URL to visited. Calling it for
// a URL that is not in flight returns ErrInvalidTransition.
func (f *Frontier) MarkVisited(rawURL string) error {
	return f.finish(rawURL, stateVisited, "")
}

// MarkFailed transitions an in-flight URL to failed and records the
// reason. Calling it for a URL that is not in flight returns
// ErrInvalidTransition.
func (f *Frontier) MarkFailed(rawURL, reason string) error {
	return f.finish(rawURL, stateFailed, reason)
}

// finish applies a terminal transition for an in-flight URL.
func (f *Frontier) finish(rawURL string, to urlState, reason string) error {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		return ErrInvalidTransition
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.states[canonical] != stateInFlight {
		return ErrInvalidTransition
	}
	f.states[canonical] = to
	f.inFlight--
	if to == stateFailed {
		f.failedReasons[canonical] = reason
	} else {
		f.visitedCount++
	}
	return nil
}

// Close releases all blocked Take and Add callers. It is idempotent.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.notEmpty.Broadcast()
	f.notFull.Broadcast()
}

// Closed reports whether Close has been called.
func (f *Frontier) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Len returns the number of pending URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Idle reports whether no URL is pending or in flight. Together with
// an empty write queue this is the natural end of a crawl.
func (f *Frontier) Idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) == 0 && f.inFlight == 0
}

// Seen reports whether the URL (in canonical form) has ever been added.
func (f *Frontier) Seen(rawURL string) bool {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.states[canonical]
	return ok
}

// Counts returns the number of visited and failed URLs.
func (f *Frontier) Counts() (visited, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visitedCount, len(f.failedReasons)
}

// Snapshot is the serializable state of a Frontier.
type Snapshot struct {
	// Pending preserves queue order.
	Pending []model.URLRecord `json:"pending"`

	// InFlight lists URLs taken but not yet finished at capture time.
	InFlight []string `json:"in_flight,omitempty"`

	// Visited lists finished, successfully classified URLs.
	Visited []string `json:"visited"`

	// Failed maps failed URLs to their recorded reasons.
	Failed map[string]string `json:"failed"`
}

// Snapshot exports the frontier state. The result shares no memory
// with the frontier and reflects the state at the instant of capture;
// mutations completing concurrently may or may not be included.
func (f *Frontier) Snapshot() *Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := &Snapshot{
		Pending: make([]model.URLRecord, len(f.pending)),
		Visited: make([]string, 0, f.visitedCount),
		Failed:  make(map[string]string, len(f.failedReasons)),
	}
	copy(s.Pending, f.pending)

	for u, st := range f.states {
		switch st {
		case stateInFlight:
			s.InFlight = append(s.InFlight, u)
		case stateVisited:
			s.Visited = append(s.Visited, u)
		case stateFailed:
			s.Failed[u] = f.failedReasons[u]
		case statePending:
			// Already captured in order via f.pending.
		}
	}
	// Map iteration order is random; sort for stable snapshots.
	sort.Strings(s.InFlight)
	sort.Strings(s.Visited)
	return s
}

// Restore replaces the frontier state with a snapshot. In-flight URLs
// are re-queued at the tail: they were interrupted mid-fetch and must
// be retried. When retryFailed is set, failed URLs are also re-queued
// once and their failure records dropped. Restore must not be called
// while workers are active.
func (f *Frontier) Restore(s *Snapshot, retryFailed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = make([]model.URLRecord, len(s.Pending))
	copy(f.pending, s.Pending)
	f.states = make(map[string]urlState, len(s.Pending)+len(s.Visited)+len(s.Failed))
	f.failedReasons = make(map[string]string)
	f.visitedCount = 0
	f.inFlight = 0

	for _, rec := range f.pending {
		f.states[rec.URL] = statePending
	}
	for _, u := range s.InFlight {
		f.requeue(u)
	}
	for _, u := range s.Visited {
		f.states[u] = stateVisited
		f.visitedCount++
	}
	for u, reason := range s.Failed {
		if retryFailed {
			f.requeue(u)
			continue
		}
		f.states[u] = stateFailed
		f.failedReasons[u] = reason
	}

	if len(f.pending) > 0 {
		f.notEmpty.Broadcast()
	}
}

// requeue appends a URL to the pending queue unless already present.
// Caller holds f.mu.
func (f *Frontier) requeue(u string) {
	if _, seen := f.states[u]; seen {
		return
	}
	f.pending = append(f.pending, model.URLRecord{
		URL:          u,
		Status:       model.StatusQueued,
		DiscoveredAt: time.Now().UTC(),
	})
	f.states[u] = statePending
}
