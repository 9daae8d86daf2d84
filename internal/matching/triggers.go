// internal/matching/triggers.go
package matching

import (
	"context"

	"devmatch-workers/internal/common/metrics"
)

// TriggerOpportunity queues a rescore of the opportunity. It never blocks;
// when the queue is full the trigger is dropped and false is returned.
func (c *Coordinator) TriggerOpportunity(opportunityID string) bool {
	return c.enqueue(trigger{kind: KindOpportunity, id: opportunityID})
}

// TriggerSeeker queues a rescore of the seeker. Same semantics as
// TriggerOpportunity.
func (c *Coordinator) TriggerSeeker(seekerID string) bool {
	return c.enqueue(trigger{kind: KindSeeker, id: seekerID})
}

// TriggerProfileEdit queues a re-embedding of the seeker followed by a
// rescore, for profile text that changed.
func (c *Coordinator) TriggerProfileEdit(seekerID string) bool {
	return c.enqueue(trigger{kind: KindSeeker, id: seekerID, reembed: true})
}

func (c *Coordinator) enqueue(t trigger) bool {
	select {
	case c.triggers <- t:
		return true
	default:
		metrics.RescoreTriggersDropped.WithLabelValues(t.kind).Inc()
		c.logger.Warn("rescore queue full, dropping trigger", map[string]interface{}{
			"trigger": t.kind,
			"id":      t.id,
		})
		return false
	}
}

func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.drain(ctx)
	}
	c.logger.Info("match coordinator started", map[string]interface{}{"workers": c.cfg.Workers})
}

func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
}

// drain runs triggers until ctx is cancelled, then flushes whatever is still
// queued so triggers fired during shutdown are not lost. A rescore in flight
// is allowed to finish.
func (c *Coordinator) drain(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case t := <-c.triggers:
			c.run(context.WithoutCancel(ctx), t)
		case <-ctx.Done():
			for {
				select {
				case t := <-c.triggers:
					c.run(context.WithoutCancel(ctx), t)
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) run(ctx context.Context, t trigger) {
	var err error
	switch t.kind {
	case KindOpportunity:
		_, err = c.RescoreOpportunity(ctx, t.id)
	case KindSeeker:
		if t.reembed {
			if rerr := c.Reembed(ctx, t.id); rerr != nil {
				c.logger.Warn("re-embedding failed", map[string]interface{}{"seekerId": t.id, "error": rerr})
			}
		}
		_, err = c.RescoreSeeker(ctx, t.id)
	}
	if err != nil {
		c.logger.Error("rescore failed", map[string]interface{}{
			"trigger": t.kind,
			"id":      t.id,
			"error":   err,
		})
	}
}
