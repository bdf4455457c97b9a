// internal/deck/audit.go
package deck

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	apperrors "petswipe-workers/internal/common/errors"
	"petswipe-workers/internal/common/logger"
)

// EventPublisher fans audit events out to an external topic. Satisfied by
// the SNS client; nil publisher disables fan-out.
type EventPublisher interface {
	PublishMessage(ctx context.Context, topicARN, message string) error
}

// AuditSink appends one immutable record per deck generation. The postgres
// row is the source of truth; the topic publish is best effort.
type AuditSink struct {
	db        *sql.DB
	publisher EventPublisher
	topicARN  string
	logger    logger.Logger
}

func NewAuditSink(db *sql.DB, publisher EventPublisher, topicARN string, log logger.Logger) *AuditSink {
	return &AuditSink{
		db:        db,
		publisher: publisher,
		topicARN:  topicARN,
		logger:    log.WithFields(map[string]interface{}{"component": "auditSink"}),
	}
}

// Write persists the record and, when configured, publishes it. Publish
// failures are logged and do not fail the write.
func (a *AuditSink) Write(ctx context.Context, rec AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	weightsRaw, err := json.Marshal(rec.Weights)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(err)
	}
	capsRaw, err := json.Marshal(rec.Caps)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO deck_audit (id, user_id, deck_size, strategy, pool_size, weights, caps, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.UserID, rec.DeckSize, rec.Strategy, rec.PoolSize,
		weightsRaw, capsRaw, rec.GeneratedAt)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(err)
	}

	if a.publisher != nil && a.topicARN != "" {
		payload, err := json.Marshal(rec)
		if err == nil {
			err = a.publisher.PublishMessage(ctx, a.topicARN, string(payload))
		}
		if err != nil {
			a.logger.Warn("Audit event publish failed", map[string]interface{}{
				"auditId": rec.ID,
				"userId":  rec.UserID,
				"error":   err.Error(),
			})
		}
	}
	return nil
}
