package webhook

import (
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/logger"
)

const dedupKeyPrefix = "webhook:processed:"

// DedupStore is the slice of the redis adapter the deduper needs.
type DedupStore interface {
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
}

// Deduper drops redelivered webhook events by setting a short-lived
// processed marker per provider message id. A redis outage degrades to
// processing everything: availability wins over strict dedup here because
// the write paths behind the webhook are idempotent or monotonic.
type Deduper struct {
	redis DedupStore
	ttl   time.Duration
}

func NewDeduper(adapter DedupStore, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{redis: adapter, ttl: ttl}
}

// SeenBefore marks the message id as processed and reports whether some
// earlier delivery already did.
func (d *Deduper) SeenBefore(messageID string) bool {
	if d == nil || d.redis == nil || messageID == "" {
		return false
	}
	acquired, err := d.redis.SetNX(dedupKeyPrefix+messageID, []byte("1"), d.ttl)
	if err != nil {
		logger.Warn("webhook dedup check failed, processing anyway", "message_id", messageID, "error", err)
		return false
	}
	return !acquired
}
