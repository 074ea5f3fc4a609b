package mailer

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/threadbare/storefront/internal/mq"
)

// Worker consumes queued email jobs and delivers them through a Sender.
// Delivery failures nack the message so the broker redelivers it.
type Worker struct {
	queue  *mq.MQ
	sender Sender
	log    *logrus.Logger
}

func NewWorker(queue *mq.MQ, sender Sender, log *logrus.Logger) *Worker {
	return &Worker{queue: queue, sender: sender, log: log}
}

// Run blocks consuming the outbound-email channel until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.WithField("channel", ChannelOutboundEmail).Info("mail worker started")
	return w.queue.Subscribe(ctx, ChannelOutboundEmail, w.handle)
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var job EmailJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// Malformed jobs can never succeed; drop instead of redelivering.
		w.log.WithError(err).WithField("message_id", msg.ID).Error("dropping malformed email job")
		return nil
	}

	if err := w.sender.Send(job); err != nil {
		w.log.WithError(err).WithFields(logrus.Fields{
			"message_id": msg.ID,
			"to":         job.To,
		}).Error("failed to send email")
		return err
	}

	w.log.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"to":         job.To,
		"subject":    job.Subject,
	}).Info("email sent")
	return nil
}
