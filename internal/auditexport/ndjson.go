package auditexport

import (
	"encoding/json"
	"io"
	"net"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

// NDJSONWriter writes audit records as newline-delimited JSON.
type NDJSONWriter struct {
	enc *json.Encoder
}

func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	return &NDJSONWriter{enc: enc}
}

func (w *NDJSONWriter) Write(record domain.AuditRecord) error {
	return w.enc.Encode(exportRecordFromDomain(record))
}

type exportRecord struct {
	RecordID        int64           `json:"record_id"`
	OccurredAt      string          `json:"occurred_at"`
	Actor           string          `json:"actor"`
	Action          string          `json:"action"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	RunID           string          `json:"run_id,omitempty"`
	RequestID       string          `json:"request_id,omitempty"`
	IP              string          `json:"ip,omitempty"`
	UserAgent       string          `json:"user_agent,omitempty"`
	Details         json.RawMessage `json:"details"`
	IntegritySHA256 string          `json:"integrity_sha256"`
}

func exportRecordFromDomain(record domain.AuditRecord) exportRecord {
	details, _ := json.Marshal(record.Details)
	return exportRecord{
		RecordID:        record.RecordID,
		OccurredAt:      record.OccurredAt.UTC().Format(timeFormatRFC3339Nano),
		Actor:           record.Actor,
		Action:          record.Action,
		EntityType:      record.EntityType,
		EntityID:        record.EntityID,
		RunID:           record.RunID,
		RequestID:       record.RequestID,
		IP:              ipString(record.IP),
		UserAgent:       record.UserAgent,
		Details:         details,
		IntegritySHA256: record.IntegritySHA256,
	}
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

const timeFormatRFC3339Nano = "2006-01-02T15:04:05.999999999Z07:00"
