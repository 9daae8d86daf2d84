// internal/notify/notify.go
package notify

import (
	"context"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/metrics"
	"devmatch-workers/internal/models"
)

const EventAnalysisFinished = "ANALYSIS_FINISHED"

// Event announces that an analysis job reached a terminal status.
type Event struct {
	Type       string    `json:"type"`
	JobID      string    `json:"jobId"`
	UserID     string    `json:"userId"`
	Status     string    `json:"status"`
	Results    int       `json:"results"`
	Errors     int       `json:"errors"`
	FinishedAt time.Time `json:"finishedAt"`
}

func NewAnalysisFinished(job *models.AnalysisJob) Event {
	e := Event{
		Type:    EventAnalysisFinished,
		JobID:   job.ID,
		UserID:  job.UserID,
		Status:  string(job.Status),
		Results: len(job.Results),
		Errors:  len(job.Errors),
	}
	if job.CompletedAt != nil {
		e.FinishedAt = *job.CompletedAt
	}
	return e
}

type Notifier interface {
	AnalysisFinished(ctx context.Context, event Event) error
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) AnalysisFinished(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.AnalysisFinished(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) AnalysisFinished(context.Context, Event) error { return nil }

func record(channel string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	metrics.NotificationsSent.WithLabelValues(channel, outcome).Inc()
}
