package audit

import (
	"context"
	"time"

	"stock-service/internal/models"
	"stock-service/internal/util"

	"go.uber.org/zap"
)

// TxSink appends an audit entry inside the caller's open transaction.
type TxSink interface {
	RecordAudit(ctx context.Context, entry *models.AuditEntry) error
}

// FailureSink appends an audit entry through a channel with no shared
// transactional context, so the entry persists even when the surrounding
// business transaction rolls back.
type FailureSink interface {
	RecordAuditFailure(ctx context.Context, entry *models.AuditEntry) error
}

// Recorder records the outcome of every attempted mutation. Successes commit
// with the business transaction; failures are written independently of it.
type Recorder struct {
	failures FailureSink
	logger   *zap.Logger
}

// NewRecorder creates a new audit recorder
func NewRecorder(failures FailureSink) *Recorder {
	return &Recorder{
		failures: failures,
		logger:   util.GetLogger(),
	}
}

// Success writes a success entry through tx. It persists only if tx commits.
func (r *Recorder) Success(ctx context.Context, tx TxSink, username, action, table string, recordID *int64, detail string) error {
	return tx.RecordAudit(ctx, &models.AuditEntry{
		Timestamp: time.Now().UTC(),
		Username:  username,
		Action:    action,
		TableName: table,
		RecordID:  recordID,
		Detail:    detail,
		Success:   true,
	})
}

// Failure durably records a rejected attempt. It never fails the caller: a
// sink error is logged and swallowed. The write is detached from the request
// context so an already-cancelled request still gets its failure entry.
func (r *Recorder) Failure(ctx context.Context, username, action, table string, recordID *int64, detail string) {
	entry := &models.AuditEntry{
		Timestamp: time.Now().UTC(),
		Username:  username,
		Action:    action,
		TableName: table,
		RecordID:  recordID,
		Detail:    detail,
		Success:   false,
	}

	if err := r.failures.RecordAuditFailure(context.WithoutCancel(ctx), entry); err != nil {
		util.AuditFailureWriteErrors.Inc()
		r.logger.Error("Failed to record audit failure",
			zap.String("action", action),
			zap.String("table", table),
			zap.Error(err))
	}
}
