package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/segmentio/kafka-go"
)

// TxBeginner is satisfied by *db.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	pool      TxBeginner
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(pool TxBeginner, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	p.loop(ctx, writer)
}

func (p *Publisher) loop(ctx context.Context, writer MessageWriter) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx, writer)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox events published", "count", n)
			}
		}
	}
}

// PublishBatch relays one batch of unpublished events and marks them
// published in the same transaction. Rows stay locked until commit so
// concurrent publishers skip them.
func (p *Publisher) PublishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		msgCtx := otelx.TraceContext{Traceparent: r.Traceparent, Tracestate: r.Tracestate}.Attach(ctx)
		meta := kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType, AggregateType: r.AggregateType}
		msg := kafka.Message{
			Topic:   r.EventType,
			Key:     []byte(r.AggregateID),
			Value:   r.Payload,
			Headers: kafkax.InjectTraceHeaders(msgCtx, meta.Headers()),
		}
		msgs = append(msgs, msg)
		ids = append(ids, r.ID)
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(records), nil
}
