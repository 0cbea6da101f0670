package auditlog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Event is one append-only audit record. Details carries the
// action-specific payload and is hashed together with the envelope.
type Event struct {
	OccurredAt time.Time
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	RunID      string
	RequestID  string
	IP         net.IP
	UserAgent  string
	Details    any
}

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (e Event) Validate() error {
	if e.OccurredAt.IsZero() {
		return errors.New("OccurredAt is required")
	}
	if strings.TrimSpace(e.Actor) == "" {
		return errors.New("Actor is required")
	}
	if strings.TrimSpace(e.Action) == "" {
		return errors.New("Action is required")
	}
	if strings.TrimSpace(e.EntityType) == "" {
		return errors.New("EntityType is required")
	}
	if strings.TrimSpace(e.EntityID) == "" {
		return errors.New("EntityID is required")
	}
	return nil
}

func Insert(ctx context.Context, q QueryRower, event Event) (int64, error) {
	if q == nil {
		return 0, errors.New("queryer is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}

	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return 0, fmt.Errorf("marshal details: %w", err)
	}

	ipStr := strings.TrimSpace(event.IP.String())
	integrity, err := ComputeIntegritySHA256(event, detailsJSON)
	if err != nil {
		return 0, err
	}

	var runID sql.NullString
	if strings.TrimSpace(event.RunID) != "" {
		runID = sql.NullString{String: strings.TrimSpace(event.RunID), Valid: true}
	}
	var requestID sql.NullString
	if strings.TrimSpace(event.RequestID) != "" {
		requestID = sql.NullString{String: strings.TrimSpace(event.RequestID), Valid: true}
	}
	var ip sql.NullString
	if ipStr != "" && ipStr != "<nil>" {
		ip = sql.NullString{String: ipStr, Valid: true}
	}
	var userAgent sql.NullString
	if strings.TrimSpace(event.UserAgent) != "" {
		userAgent = sql.NullString{String: strings.TrimSpace(event.UserAgent), Valid: true}
	}

	var id int64
	err = q.QueryRowContext(
		ctx,
		`INSERT INTO audit_records (
			occurred_at,
			actor,
			action,
			entity_type,
			entity_id,
			run_id,
			request_id,
			ip,
			user_agent,
			details,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING record_id`,
		event.OccurredAt.UTC(),
		strings.TrimSpace(event.Actor),
		strings.TrimSpace(event.Action),
		strings.TrimSpace(event.EntityType),
		strings.TrimSpace(event.EntityID),
		runID,
		requestID,
		ip,
		userAgent,
		detailsJSON,
		integrity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert audit record: %w", err)
	}
	return id, nil
}

func ComputeIntegritySHA256(event Event, detailsJSON []byte) (string, error) {
	type integrityInput struct {
		OccurredAt time.Time       `json:"occurred_at"`
		Actor      string          `json:"actor"`
		Action     string          `json:"action"`
		EntityType string          `json:"entity_type"`
		EntityID   string          `json:"entity_id"`
		RunID      string          `json:"run_id,omitempty"`
		RequestID  string          `json:"request_id,omitempty"`
		IP         string          `json:"ip,omitempty"`
		UserAgent  string          `json:"user_agent,omitempty"`
		Details    json.RawMessage `json:"details"`
	}

	ipStr := strings.TrimSpace(event.IP.String())
	if ipStr == "<nil>" {
		ipStr = ""
	}

	in := integrityInput{
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      strings.TrimSpace(event.Actor),
		Action:     strings.TrimSpace(event.Action),
		EntityType: strings.TrimSpace(event.EntityType),
		EntityID:   strings.TrimSpace(event.EntityID),
		RunID:      strings.TrimSpace(event.RunID),
		RequestID:  strings.TrimSpace(event.RequestID),
		IP:         ipStr,
		UserAgent:  strings.TrimSpace(event.UserAgent),
		Details:    detailsJSON,
	}

	blob, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
