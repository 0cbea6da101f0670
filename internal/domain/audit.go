package domain

import (
	"errors"
	"net"
	"strings"
	"time"
)

// AuditRecord is an immutable append-only record. Creation is its
// entire lifecycle.
type AuditRecord struct {
	RecordID        int64
	OccurredAt      time.Time
	Actor           string
	Action          string
	EntityType      string
	EntityID        string
	RunID           string
	RequestID       string
	IP              net.IP
	UserAgent       string
	Details         Metadata
	IntegritySHA256 string
}

func (r AuditRecord) Validate() error {
	if r.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	if strings.TrimSpace(r.Actor) == "" {
		return errors.New("actor is required")
	}
	if strings.TrimSpace(r.Action) == "" {
		return errors.New("action is required")
	}
	if strings.TrimSpace(r.EntityType) == "" {
		return errors.New("entity_type is required")
	}
	if strings.TrimSpace(r.EntityID) == "" {
		return errors.New("entity_id is required")
	}
	return nil
}
