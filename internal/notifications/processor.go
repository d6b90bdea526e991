package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/queue"
)

// Mail is one outgoing email.
type Mail struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// LogMailer logs emails instead of sending them.
type LogMailer struct {
	From   string
	Logger *zap.Logger
}

// Send implements Mailer.
func (l LogMailer) Send(_ context.Context, m Mail) error {
	l.Logger.Info("email delivered", zap.String("from", l.From), zap.String("to", m.To), zap.String("subject", m.Subject), zap.Int("bytes", len(m.HTML)))
	return nil
}

// JobSource is the queue the processor drains.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
}

// LogWriter records delivery outcomes.
type LogWriter interface {
	CreateEmailLog(ctx context.Context, l *models.EmailLog) error
}

// Processor delivers queued email jobs.
type Processor struct {
	queue   JobSource
	logs    LogWriter
	mailer  Mailer
	logger  *zap.Logger
	backoff time.Duration
}

// NewProcessor creates an email processor.
func NewProcessor(q JobSource, logs LogWriter, mailer Mailer, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	return &Processor{queue: q, logs: logs, mailer: mailer, logger: logger, backoff: queue.RetryBackoff}
}

// Process delivers one job. A successful delivery is logged as sent; errors are returned for retry.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	payload, err := decode(job)
	if err != nil {
		return err
	}
	if err := p.mailer.Send(ctx, Mail{To: payload.RecipientEmail, Subject: payload.Subject, HTML: payload.BodyHTML}); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	p.record(ctx, payload, models.EmailLogStatusSent, "")
	return nil
}

// Run drains the queue until ctx is done. Failed jobs are retried and, once
// they exhaust their retries, logged as failed and dead-lettered.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("email worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		p.handle(ctx, job)
	}
}

func (p *Processor) handle(ctx context.Context, job *queue.Job) {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	err := p.Process(ctx, job)
	if err == nil {
		return
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
	dead, reErr := p.queue.Retry(ctx, job)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		return
	}
	if dead {
		if payload, decErr := decode(job); decErr == nil {
			p.record(ctx, payload, models.EmailLogStatusFailed, err.Error())
		}
		return
	}
	p.sleep(ctx)
}

func (p *Processor) record(ctx context.Context, payload *queue.EmailPayload, status, errMsg string) {
	eventID := payload.EventID
	l := &models.EmailLog{
		EventID:        &eventID,
		AttendeeID:     payload.AttendeeID,
		PurchaseID:     payload.PurchaseID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
		Status:         status,
		ErrorMessage:   errMsg,
	}
	if status == models.EmailLogStatusSent {
		l.SentAt = models.Now().Ptr()
	}
	if err := p.logs.CreateEmailLog(ctx, l); err != nil {
		p.logger.Error("write email log", zap.String("recipient", payload.RecipientEmail), zap.Error(err))
	}
}

func (p *Processor) sleep(ctx context.Context) {
	if p.backoff <= 0 {
		return
	}
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func decode(job *queue.Job) (*queue.EmailPayload, error) {
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}
