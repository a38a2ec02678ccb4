package services

import (
	"context"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

func (c *Coordinator) persist(batchID string, result *models.MarkingResult) {
	if c.persister == nil {
		return
	}
	saved := result.Clone()
	kind := c.cfg.SessionKind

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.persister.SaveResult(ctx, saved, kind); err != nil {
			c.post(loopEvent{kind: loopPersistFailed, batchID: batchID, questionID: saved.QuestionID, err: err})
		}
	}()
}

func (c *Coordinator) mirror(result *models.MarkingResult) {
	if c.liveView == nil {
		return
	}
	snapshot := result.Clone()
	c.enqueue(func(ctx context.Context) {
		if err := c.liveView.PutResult(ctx, snapshot); err != nil {
			c.logger.Warn("Failed to mirror live result", "question_id", snapshot.QuestionID, "error", err)
		}
	})
}

func (c *Coordinator) enqueueLiveClear() {
	if c.liveView == nil {
		return
	}
	c.enqueue(func(ctx context.Context) {
		if err := c.liveView.ClearResults(ctx); err != nil {
			c.logger.Warn("Failed to clear live results", "error", err)
		}
	})
}

func (c *Coordinator) enqueueMarked(batchID string, result *models.MarkingResult) {
	if c.notifier == nil {
		return
	}
	snapshot := result.Clone()
	c.enqueue(func(ctx context.Context) {
		c.notifier.QuestionMarked(ctx, batchID, snapshot)
	})
}

func (c *Coordinator) notifyUser(n Notification) {
	if c.notifier == nil {
		return
	}
	n.CreatedAt = c.clock.Now()
	c.enqueue(func(ctx context.Context) {
		c.notifier.NotifyUser(ctx, n)
	})
}

// enqueue schedules a side effect; side effects run in order off the loop.
func (c *Coordinator) enqueue(task func(context.Context)) {
	c.outbox <- task
}

func (c *Coordinator) drainOutbox() {
	defer c.wg.Done()
	for task := range c.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		task(ctx)
		cancel()
	}
}

func (c *Coordinator) publishState() {
	state := MarkingState{
		BatchID:   c.lastBatchID,
		Status:    c.status,
		IsMarking: c.batch != nil,
		Results:   make([]*models.MarkingResult, 0, len(c.order)),
	}
	for _, id := range c.order {
		r := c.live[id]
		state.Results = append(state.Results, r.Clone())
		if r.IsMarked && !state.IsMarking {
			state.IsMarked = true
		}
	}
	if c.lastErr != nil {
		state.Error = c.lastErr.Error()
	}

	c.stateMu.Lock()
	c.snapshot = state
	c.stateMu.Unlock()
}
