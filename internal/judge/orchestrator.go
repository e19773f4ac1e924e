package judge

import (
	"context"
	"log/slog"
	"sort"

	"github.com/abenov/zanexam/internal/judge/prompts"
	"github.com/abenov/zanexam/internal/model"
)

// numBatches is the fixed number of contiguous batches a submission is split
// into; the last batch absorbs the remainder.
const numBatches = 4

// Orchestrator drives a submission's items through the remote judge in
// sequential batches under the budget controller, falling back to the local
// evaluator for any batch or item the remote path cannot serve. Its output
// always contains exactly one judgment per input item, in ordinal order.
type Orchestrator struct {
	judge Judge
	ctrl  *Controller
	fb    *Fallback
}

// NewOrchestrator wires the advisory track. A nil judge is permitted and
// routes everything to the fallback evaluator.
func NewOrchestrator(j Judge, ctrl *Controller, fb *Fallback) *Orchestrator {
	if ctrl == nil {
		ctrl = NewController(0, 0)
	}
	if fb == nil {
		fb = NewFallback(nil)
	}
	return &Orchestrator{judge: j, ctrl: ctrl, fb: fb}
}

// Grade produces the advisory judgment list for a submission. Batches are
// processed in order; failed batches get fallback judgments immediately and
// at most MaxRetries of them are retried once each afterwards, successful
// retries replacing the earlier fallback entries. Remote failures never
// escape: the worst outcome is an all-fallback result.
func (o *Orchestrator) Grade(ctx context.Context, items []model.GradingItem) []model.Judgment {
	if len(items) == 0 {
		return nil
	}

	results := make(map[int]model.Judgment, len(items))
	commit := func(js []model.Judgment) {
		for _, j := range js {
			results[j.Ordinal] = j
		}
	}

	batches := splitBatches(items, numBatches)
	var failed [][]model.GradingItem

	for i, batch := range batches {
		js, ok := o.gradeBatchRemote(ctx, batch)
		if ok {
			commit(js)
			continue
		}
		slog.Info("batch graded via fallback", "batch", i+1, "items", len(batch))
		commit(o.gradeBatchFallback(batch))
		failed = append(failed, batch)
	}

	retries := 0
	for _, batch := range failed {
		if retries >= o.ctrl.MaxRetries() {
			break
		}
		retries++
		js, ok := o.gradeBatchRemote(ctx, batch)
		if ok {
			commit(js)
		}
	}

	judgments := make([]model.Judgment, 0, len(items))
	for _, item := range items {
		judgments = append(judgments, results[item.Ordinal])
	}
	sort.Slice(judgments, func(i, k int) bool {
		return judgments[i].Ordinal < judgments[k].Ordinal
	})
	return judgments
}

// gradeBatchRemote attempts one remote evaluation of a batch. It returns
// ok=false when the budget is exhausted, the judge is absent or errored, or
// the reply contained no usable record at all. Transport and payload
// failures are recorded against the batch's identity for retry matching.
func (o *Orchestrator) gradeBatchRemote(ctx context.Context, batch []model.GradingItem) ([]model.Judgment, bool) {
	if o.judge == nil {
		return nil, false
	}
	if !o.ctrl.Acquire() {
		slog.Debug("remote budget exhausted", "limit", o.ctrl.Limit())
		return nil, false
	}

	retry := o.ctrl.IsRetry(batch)
	slog.Info("remote judge call", "call", o.ctrl.CallsUsed(), "limit", o.ctrl.Limit(),
		"items", len(batch), "retry", retry)

	prompt, err := prompts.BuildBatchPrompt(batch)
	if err != nil {
		slog.Error("build batch prompt", "error", err)
		return nil, false
	}

	reply, err := o.judge.Evaluate(ctx, prompt)
	if err != nil {
		slog.Warn("remote judge failed", "error", err)
		o.ctrl.RecordFailure(batch)
		return nil, false
	}

	judgments := ParseReply(reply, batch, o.fb)
	if remoteCount(judgments) == 0 {
		slog.Warn("remote reply entirely unusable", "items", len(batch))
		o.ctrl.RecordFailure(batch)
		return nil, false
	}

	if retry {
		o.ctrl.ResolveFailure(batch)
	}
	for i, j := range judgments {
		judgments[i] = Reconcile(j, itemByOrdinal(batch, j.Ordinal))
	}
	return judgments, true
}

// gradeBatchFallback grades every item of a batch locally. Fallback
// judgments pass through the same reconciler as remote ones.
func (o *Orchestrator) gradeBatchFallback(batch []model.GradingItem) []model.Judgment {
	judgments := make([]model.Judgment, 0, len(batch))
	for _, item := range batch {
		judgments = append(judgments, Reconcile(o.fb.Evaluate(item), item))
	}
	return judgments
}

// splitBatches divides items into at most n contiguous batches of equal size
// (ceiling division), the last absorbing the remainder.
func splitBatches(items []model.GradingItem, n int) [][]model.GradingItem {
	if len(items) == 0 {
		return nil
	}
	size := (len(items) + n - 1) / n
	var batches [][]model.GradingItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

func itemByOrdinal(batch []model.GradingItem, ordinal int) model.GradingItem {
	for _, item := range batch {
		if item.Ordinal == ordinal {
			return item
		}
	}
	return model.GradingItem{Ordinal: ordinal}
}
