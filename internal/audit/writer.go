package audit

import (
	"context"

	"github.com/nerrad567/communities-core/internal/infrastructure/logging"
)

// DefaultQueueSize is the Writer buffer used when none is given.
const DefaultQueueSize = 256

// Writer queues entries and writes them serially to a Repository.
//
// Record never blocks. Entries are written by Run, which must be started
// once in its own goroutine.
type Writer struct {
	repo   Repository
	source string
	queue  chan *Entry
	logger *logging.Logger
}

// NewWriter creates a Writer tagging entries with source.
func NewWriter(repo Repository, source string, size int, logger *logging.Logger) *Writer {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Writer{
		repo:   repo,
		source: source,
		queue:  make(chan *Entry, size),
		logger: logger,
	}
}

// Record enqueues an entry. If the queue is full the entry is dropped and a
// warning is logged.
func (w *Writer) Record(action, entityType, entityID, userID string, details map[string]any) {
	entry := &Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     w.source,
		Details:    details,
	}

	select {
	case w.queue <- entry:
	default:
		w.logger.Warn("audit queue full, dropping entry",
			"action", action,
			"entity_type", entityType,
		)
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left before returning.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case entry := <-w.queue:
			w.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-w.queue:
					w.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(entry *Entry) {
	// Detached from the request so a finished request does not cancel its entry.
	if err := w.repo.Create(context.Background(), entry); err != nil {
		w.logger.Error("audit write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
