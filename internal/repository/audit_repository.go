package repository

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const auditTTL = 90 * 24 * time.Hour

// auditRepository keeps raw notification payloads in Redis for replay
// forensics. Entries expire; disputes older than the TTL go to the gateway's
// own records.
type auditRepository struct {
	client *redis.Client
}

func NewAudit(client *redis.Client) port.AuditTrail {
	return &auditRepository{client: client}
}

type auditRecord struct {
	URI        string            `json:"uri"`
	Params     map[string]string `json:"params"`
	Body       string            `json:"body,omitempty"`
	ClientIP   string            `json:"clientIp"`
	ReceivedAt time.Time         `json:"receivedAt"`
}

func (r *auditRepository) SaveTransaction(ctx context.Context, key string, n domain.Notification) error {
	params := make(map[string]string, len(n.Params))
	for k := range n.Params {
		params[k] = n.Params.Get(k)
	}

	doc, err := json.Marshal(auditRecord{
		URI:        n.URI,
		Params:     params,
		Body:       string(n.Body),
		ClientIP:   n.ClientIP,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := r.client.Set(ctx, key, doc, auditTTL).Err(); err != nil {
		return fmt.Errorf("client.Set[%s]: %w", key, err)
	}

	return nil
}
