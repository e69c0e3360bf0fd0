package deadletter

import (
	"context"
	"time"

	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/submission"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

const (
	replayBatchSize   = 10
	replayWaitSeconds = 1
)

// Resubmitter re-delivers a built record. *submission.Service implements it.
type Resubmitter interface {
	Resubmit(ctx context.Context, rec leads.Record) submission.Result
}

var _ Resubmitter = (*submission.Service)(nil)

// ReplayStats summarizes one Replay run.
type ReplayStats struct {
	Received  int `json:"received"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ReplayOptions bounds one Replay run.
type ReplayOptions struct {
	// Limit stops the run after this many messages; <= 0 drains the queue.
	Limit int
	// Visibility hides received messages from other receivers while they are
	// resubmitted. It should exceed the worst-case resubmit time.
	Visibility time.Duration
}

// Replay drains the queue through r until a receive comes back empty, a
// message handled earlier in the run is seen again, or opts.Limit messages
// were handled. Delivered messages are deleted; failed and malformed ones
// stay on the queue for the next run.
func Replay(ctx context.Context, q *SQSQueue, r Resubmitter, opts ReplayOptions, logger *logging.Logger) (ReplayStats, error) {
	if logger == nil {
		logger = logging.Default()
	}
	limit := opts.Limit
	seen := make(map[string]struct{})
	var stats ReplayStats
	for limit <= 0 || stats.Received < limit {
		batch := replayBatchSize
		if limit > 0 && limit-stats.Received < batch {
			batch = limit - stats.Received
		}
		messages, err := q.Receive(ctx, batch, replayWaitSeconds, opts.Visibility)
		if err != nil {
			return stats, err
		}
		if len(messages) == 0 {
			return stats, nil
		}
		wrapped := false
		for _, msg := range messages {
			if _, ok := seen[msg.ID]; ok {
				wrapped = true
				continue
			}
			seen[msg.ID] = struct{}{}
			stats.Received++
			if msg.DecodeErr != nil {
				stats.Skipped++
				logger.Warn("dead letter message is malformed", "message_id", msg.ID, "error", msg.DecodeErr)
				continue
			}
			rec, err := leads.DecodeRecord(msg.Entry.Body)
			if err != nil || len(rec) == 0 {
				stats.Skipped++
				logger.Warn("dead letter entry has no usable body", "message_id", msg.ID, "submission_id", msg.Entry.SubmissionID)
				continue
			}
			result := r.Resubmit(ctx, rec)
			if !result.Success {
				stats.Failed++
				logger.Warn("dead letter replay failed",
					"message_id", msg.ID,
					"submission_id", msg.Entry.SubmissionID,
					"kind", result.Kind,
					"error", result.Detail,
				)
				continue
			}
			stats.Delivered++
			if err := q.Delete(ctx, msg.ReceiptHandle); err != nil {
				return stats, err
			}
			logger.Info("dead letter replayed",
				"message_id", msg.ID,
				"submission_id", msg.Entry.SubmissionID,
				"mode", result.Mode,
			)
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if wrapped {
			logger.Info("dead letter replay reached messages already tried in this run")
			return stats, nil
		}
	}
	return stats, nil
}
