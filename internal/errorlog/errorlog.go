package errorlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pmikheev/staffauth/internal/logger"
)

const sqlInsertEntry = `
	-- name: InsertErrorLogEntry
	INSERT INTO error_log (occurred_at, status, code, message, path)
	VALUES ($1, $2, $3, $4, $5)
`

const defaultQueueSize = 256

// Entry is one failed API response worth keeping
type Entry struct {
	OccurredAt time.Time
	Status     int
	Code       string
	Message    string
	Path       string
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder persists failed responses without blocking the request path.
// Record enqueues, a single writer goroutine inserts. When the queue is
// full the entry is dropped: the error log is best effort.
type Recorder struct {
	db     execer
	logger logger.Logger
	queue  chan Entry
}

func NewRecorder(db execer, l logger.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Recorder{
		db:     db,
		logger: l,
		queue:  make(chan Entry, queueSize),
	}
}

func (rec *Recorder) Record(status int, code string, message string, path string) {
	entry := Entry{
		OccurredAt: time.Now(),
		Status:     status,
		Code:       code,
		Message:    message,
		Path:       path,
	}

	select {
	case rec.queue <- entry:
	default:
		rec.logger.Warn("error log queue full, entry dropped", "path", path, "status", status)
	}
}

// Run consumes the queue until ctx is canceled, then drains what is left.
// Meant to be started once as a goroutine
func (rec *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-rec.queue:
			rec.insert(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-rec.queue:
					rec.insert(entry)
				default:
					return
				}
			}
		}
	}
}

func (rec *Recorder) insert(entry Entry) {
	// Own timeout: the request ctx that produced the entry is long gone
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := rec.db.Exec(ctx, sqlInsertEntry,
		entry.OccurredAt, entry.Status, entry.Code, entry.Message, entry.Path)
	if err != nil {
		rec.logger.Error(fmt.Sprintf("failed to persist error log entry: %v", err), "path", entry.Path)
	}
}
