package services

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/huangang/uptask/internal/config"
	"github.com/huangang/uptask/pkg/logger"
)

const (
	TaskTypeMail = "mail:send"
)

// MailQueue hands mail off so requests never wait on SMTP.
type MailQueue interface {
	Enqueue(ctx context.Context, mail *Mail) error
	// IsAsync returns true if a separate worker delivers the mail
	IsAsync() bool
	Close() error
}

// NewMailQueue returns a Redis backed queue when Redis is enabled and
// reachable, and an in-process queue otherwise.
func NewMailQueue(cfg *config.Config, mailer *Mailer) MailQueue {
	if cfg.Redis.Enabled {
		queue, err := NewAsyncMailQueue(&cfg.Redis)
		if err != nil {
			logger.Warnf("[MailQueue] Redis unavailable, falling back to sync mode: %v", err)
			return NewSyncMailQueue(mailer)
		}
		logger.Infof("[MailQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
		return queue
	}
	logger.Infof("[MailQueue] Sync queue initialized (Redis disabled)")
	return NewSyncMailQueue(mailer)
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncMailQueue implements MailQueue using asynq (Redis-based)
type AsyncMailQueue struct {
	client *asynq.Client
}

func NewAsyncMailQueue(cfg *config.RedisConfig) (*AsyncMailQueue, error) {
	redisOpt := redisClientOpt(cfg)
	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncMailQueue{client: client}, nil
}

func newMailTask(mail *Mail) (*asynq.Task, error) {
	payload, err := json.Marshal(mail)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMail, payload), nil
}

func (q *AsyncMailQueue) Enqueue(ctx context.Context, mail *Mail) error {
	t, err := newMailTask(mail)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue("mail"),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("id", info.ID).Str("queue", info.Queue).Msg("[MailQueue] mail enqueued")
	return nil
}

func (q *AsyncMailQueue) IsAsync() bool { return true }

func (q *AsyncMailQueue) Close() error { return q.client.Close() }

// SyncMailQueue delivers in a background goroutine of this process.
type SyncMailQueue struct {
	mailer *Mailer
}

func NewSyncMailQueue(mailer *Mailer) *SyncMailQueue {
	return &SyncMailQueue{mailer: mailer}
}

func (q *SyncMailQueue) Enqueue(_ context.Context, mail *Mail) error {
	if q.mailer == nil {
		logger.Warnf("[SyncMailQueue] no mailer set, mail to %v dropped", mail.To)
		return nil
	}

	go func() {
		if err := q.mailer.Send(context.Background(), mail); err != nil {
			logger.Warnf("[SyncMailQueue] delivery failed: %v", err)
		}
	}()
	return nil
}

func (q *SyncMailQueue) IsAsync() bool { return false }

func (q *SyncMailQueue) Close() error { return nil }
