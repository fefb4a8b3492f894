// Package audit records every applied upstream snapshot: who pushed it, what
// the synchronizer did with it, and the payload itself. Large payloads are
// stored zstd-compressed.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	"lifeline/internal/core/apperror"
	appctx "lifeline/internal/core/context"
	"lifeline/internal/core/id"
	"lifeline/internal/core/storage"
	"lifeline/internal/domain/syncer"
	"lifeline/internal/metadata"
)

// TableName is the audit table.
const TableName = "sync_audit"

// Compression names the codec of Entry.Payload.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// DefaultCompressThreshold is the payload size above which zstd kicks in.
const DefaultCompressThreshold = 10 * 1024

// Entry is one applied snapshot.
type Entry struct {
	ID        int64  `db:"audit_id" json:"id"`
	OwnerID   id.ID  `db:"owner_id" json:"ownerId"`
	Entity    string `db:"entity" json:"entity"`
	At        int64  `db:"snapshot_at" json:"at"`
	Subject   string `db:"subject" json:"subject,omitempty"`
	RequestID string `db:"request_id" json:"requestId,omitempty"`
	Items     int    `db:"items" json:"items"`

	syncer.Result

	Payload     []byte `db:"payload" json:"-"`
	Compression string `db:"compression" json:"compression"`

	// RecordedAt is wall-clock Unix milliseconds
	RecordedAt int64 `db:"recorded_at" json:"recordedAt"`

	// Snapshot is the decompressed payload, filled by List on request
	Snapshot json.RawMessage `db:"-" json:"snapshot,omitempty"`
}

// Log writes and reads audit entries on a storage backend.
type Log struct {
	backend           storage.Backend
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
	now               func() time.Time
}

// NewLog creates an audit log over backend.
func NewLog(backend storage.Backend) (*Log, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Log{
		backend:           backend,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: DefaultCompressThreshold,
		now:               time.Now,
	}, nil
}

// WithCompressThreshold overrides the payload size above which zstd is used.
func (l *Log) WithCompressThreshold(n int) *Log {
	l.compressThreshold = n
	return l
}

// Record inserts e, joining the transaction in ctx.
// Subject and request id are taken from ctx when unset.
func (l *Log) Record(ctx context.Context, e *Entry) error {
	if e.Subject == "" {
		if p := appctx.GetPrincipal(ctx); p != nil {
			e.Subject = p.Subject
		}
	}
	if e.RequestID == "" {
		e.RequestID = appctx.GetRequestID(ctx)
	}
	if e.RecordedAt == 0 {
		e.RecordedAt = l.now().UnixMilli()
	}

	payload := e.Payload
	e.Compression = CompressionNone
	if len(payload) > l.compressThreshold {
		payload = l.encoder.EncodeAll(payload, nil)
		e.Compression = CompressionZstd
	}
	if payload == nil {
		payload = []byte{}
	}

	sqlStr, args, err := l.backend.Dialect().Builder().
		Insert(TableName).
		SetMap(map[string]any{
			"owner_id":    e.OwnerID,
			"entity":      e.Entity,
			"snapshot_at": e.At,
			"subject":     e.Subject,
			"request_id":  e.RequestID,
			"items":       e.Items,
			"created":     e.Created,
			"superseded":  e.Superseded,
			"unchanged":   e.Unchanged,
			"retired":     e.Retired,
			"payload":     payload,
			"compression": e.Compression,
			"recorded_at": e.RecordedAt,
		}).
		Suffix("RETURNING audit_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if err := l.backend.Get(ctx, &e.ID, sqlStr, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns the latest entries of owner for entity, newest first.
// With withPayload the snapshots are decompressed into Entry.Snapshot.
func (l *Log) List(ctx context.Context, owner id.ID, entity string, limit int, withPayload bool) ([]Entry, error) {
	if limit <= 0 {
		return nil, apperror.NewQueryError("limit must be positive").WithDetail("limit", limit)
	}

	sqlStr, args, err := l.backend.Dialect().Builder().
		Select("*").
		From(TableName).
		Where(squirrel.Eq{"owner_id": owner, "entity": entity}).
		OrderBy("audit_id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit select: %w", err)
	}

	var entries []Entry
	if err := l.backend.Select(ctx, &entries, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	for i := range entries {
		e := &entries[i]
		if withPayload {
			raw, err := l.decode(e)
			if err != nil {
				return nil, fmt.Errorf("audit entry %d: %w", e.ID, err)
			}
			e.Snapshot = raw
		}
		e.Payload = nil
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (l *Log) decode(e *Entry) ([]byte, error) {
	switch e.Compression {
	case CompressionZstd:
		return l.decoder.DecodeAll(e.Payload, nil)
	case CompressionNone:
		return e.Payload, nil
	}
	return nil, fmt.Errorf("unknown compression %q", e.Compression)
}

// CreateTableSQL returns the statements creating the audit table.
func CreateTableSQL(d storage.Dialect) []string {
	text := d.ColumnType(metadata.TypeString)
	integer := d.ColumnType(metadata.TypeInteger)
	return []string{
		"CREATE TABLE IF NOT EXISTS " + TableName + " (\n" +
			"\taudit_id " + d.RecordIDColumn + ",\n" +
			"\towner_id " + d.OwnerType + " NOT NULL,\n" +
			"\tentity " + text + " NOT NULL,\n" +
			"\tsnapshot_at " + d.IntervalType + " NOT NULL,\n" +
			"\tsubject " + text + " NOT NULL,\n" +
			"\trequest_id " + text + " NOT NULL,\n" +
			"\titems " + integer + " NOT NULL,\n" +
			"\tcreated " + integer + " NOT NULL,\n" +
			"\tsuperseded " + integer + " NOT NULL,\n" +
			"\tunchanged " + integer + " NOT NULL,\n" +
			"\tretired " + integer + " NOT NULL,\n" +
			"\tpayload " + d.BlobType + " NOT NULL,\n" +
			"\tcompression " + text + " NOT NULL,\n" +
			"\trecorded_at " + d.IntervalType + " NOT NULL\n)",
		"CREATE INDEX IF NOT EXISTS " + TableName + "_owner_idx ON " + TableName + " (owner_id, entity, audit_id)",
	}
}

// EnsureSchema creates the audit table if it does not exist.
func EnsureSchema(ctx context.Context, backend storage.Backend) error {
	return backend.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, stmt := range CreateTableSQL(backend.Dialect()) {
			if _, err := backend.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema %s: %w", TableName, err)
			}
		}
		return nil
	})
}
