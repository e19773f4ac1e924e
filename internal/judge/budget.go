package judge

import (
	"sort"
	"strings"
	"sync"

	"github.com/abenov/zanexam/internal/model"
)

// Defaults for the remote-call allowance and per-submission retry bound.
const (
	DefaultMaxCalls   = 6
	DefaultMaxRetries = 2
)

// Controller tracks the process-lifetime remote-call budget and the
// failed-batch registry. One Controller is shared by every submission in a
// running process; exhausting the budget is a designed degradation, not an
// error. All methods are safe for concurrent submissions.
type Controller struct {
	mu         sync.Mutex
	maxCalls   int
	calls      int
	failed     map[string]struct{}
	maxRetries int
}

// NewController creates a budget controller. Non-positive arguments take the
// defaults.
func NewController(maxCalls, maxRetries int) *Controller {
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCalls
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Controller{
		maxCalls:   maxCalls,
		failed:     make(map[string]struct{}),
		maxRetries: maxRetries,
	}
}

// Acquire consumes one remote call if any allowance remains. The counter
// increments at issuance, so a call that later times out or is abandoned has
// still spent its budget.
func (c *Controller) Acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls >= c.maxCalls {
		return false
	}
	c.calls++
	return true
}

// CallsUsed returns the number of remote calls issued so far.
func (c *Controller) CallsUsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Limit returns the remote-call ceiling.
func (c *Controller) Limit() int { return c.maxCalls }

// MaxRetries returns the per-submission retried-batch bound.
func (c *Controller) MaxRetries() int { return c.maxRetries }

// RecordFailure registers a batch as failed, keyed by its question-text set.
func (c *Controller) RecordFailure(batch []model.GradingItem) {
	key := batchKey(batch)
	c.mu.Lock()
	c.failed[key] = struct{}{}
	c.mu.Unlock()
}

// ResolveFailure removes a batch from the failed registry after a successful
// retry.
func (c *Controller) ResolveFailure(batch []model.GradingItem) {
	key := batchKey(batch)
	c.mu.Lock()
	delete(c.failed, key)
	c.mu.Unlock()
}

// IsRetry reports whether an incoming batch matches a recorded failed batch.
// Identity is the set of question texts, not item indexes, so a batch keeps
// its identity even when rebuilt from a filtered list.
func (c *Controller) IsRetry(batch []model.GradingItem) bool {
	key := batchKey(batch)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.failed[key]
	return ok
}

// batchKey canonicalizes a batch's question-text set.
func batchKey(batch []model.GradingItem) string {
	seen := make(map[string]struct{}, len(batch))
	texts := make([]string, 0, len(batch))
	for _, item := range batch {
		if _, dup := seen[item.Question]; dup {
			continue
		}
		seen[item.Question] = struct{}{}
		texts = append(texts, item.Question)
	}
	sort.Strings(texts)
	return strings.Join(texts, "\x1f")
}
