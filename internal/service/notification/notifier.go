// internal/service/notification/notifier.go
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types emitted by the referral lifecycle.
const (
	EventReferralApproved   = "referral.approved"
	EventReferralReassigned = "referral.reassigned"
	EventReferralClosed     = "referral.closed"
)

type RancherIdentity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type BuyerIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Event is the payload handed to the external email/chat notifier.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Referral   string          `json:"referral_reference"`
	Rancher    RancherIdentity `json:"rancher"`
	Buyer      BuyerIdentity   `json:"buyer"`
	OrderType  string          `json:"order_type,omitempty"`
	BudgetBand string          `json:"budget_band,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Outcome    string          `json:"outcome,omitempty"`
	SaleAmount string          `json:"sale_amount,omitempty"`
}

// Publisher delivers lifecycle events to the external notifier. Delivery is
// fire-and-forget: implementations log failures and never surface them to
// the lifecycle caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// RedisPublisher publishes events on a Redis channel consumed by the
// email/chat notifier process.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal notification event",
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Error("failed to publish notification event",
			zap.String("type", event.Type),
			zap.String("referral", event.Referral),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("notification event published",
		zap.String("type", event.Type),
		zap.String("referral", event.Referral),
	)
}
