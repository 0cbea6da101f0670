package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/platform/auditlog"
)

// AuditStore is append-only. Inserts go through the auditlog package
// so every record carries an integrity hash computed the same way.
type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	if db == nil {
		return nil
	}
	return &AuditStore{db: db}
}

const auditColumns = `record_id, occurred_at, actor, action, entity_type, entity_id,
	run_id, request_id, ip, user_agent, details, integrity_sha256`

func (s *AuditStore) Append(ctx context.Context, record domain.AuditRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("audit store not initialized")
	}
	return auditlog.Insert(ctx, s.db, auditlog.Event{
		OccurredAt: record.OccurredAt,
		Actor:      record.Actor,
		Action:     record.Action,
		EntityType: record.EntityType,
		EntityID:   record.EntityID,
		RunID:      record.RunID,
		RequestID:  record.RequestID,
		IP:         record.IP,
		UserAgent:  record.UserAgent,
		Details:    record.Details,
	})
}

func (s *AuditStore) ListByRun(ctx context.Context, runID string, limit int) ([]domain.AuditRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("audit store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if limit <= 0 {
		limit = 200
	}
	return s.list(
		ctx,
		`SELECT `+auditColumns+` FROM audit_records
		 WHERE run_id = $1
		 ORDER BY occurred_at DESC, record_id DESC
		 LIMIT $2`,
		runID,
		limit,
	)
}

func (s *AuditStore) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("audit store not initialized")
	}
	entityType = strings.TrimSpace(entityType)
	entityID = strings.TrimSpace(entityID)
	if entityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	if limit <= 0 {
		limit = 200
	}
	return s.list(
		ctx,
		`SELECT `+auditColumns+` FROM audit_records
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY occurred_at DESC, record_id DESC
		 LIMIT $3`,
		entityType,
		entityID,
		limit,
	)
}

func (s *AuditStore) list(ctx context.Context, query string, args ...any) ([]domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AuditRecord, 0)
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}

func scanAuditRecord(row rowScanner) (domain.AuditRecord, error) {
	var record domain.AuditRecord
	var runID sql.NullString
	var requestID sql.NullString
	var ip sql.NullString
	var userAgent sql.NullString
	var detailsJSON []byte
	if err := row.Scan(
		&record.RecordID,
		&record.OccurredAt,
		&record.Actor,
		&record.Action,
		&record.EntityType,
		&record.EntityID,
		&runID,
		&requestID,
		&ip,
		&userAgent,
		&detailsJSON,
		&record.IntegritySHA256,
	); err != nil {
		return domain.AuditRecord{}, err
	}
	if runID.Valid {
		record.RunID = runID.String
	}
	if requestID.Valid {
		record.RequestID = requestID.String
	}
	if ip.Valid {
		record.IP = net.ParseIP(ip.String)
	}
	if userAgent.Valid {
		record.UserAgent = userAgent.String
	}
	details, err := decodeMetadata(detailsJSON)
	if err != nil {
		return domain.AuditRecord{}, fmt.Errorf("decode details: %w", err)
	}
	record.Details = details
	return record, nil
}
