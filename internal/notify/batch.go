package notify

import (
	"database/sql"
	"log"
	"sync"
	"time"
)

const (
	defaultFlushSize     = 50
	defaultFlushInterval = 5 * time.Second
)

// AuditBatcher collects delivery audit entries and writes them to the
// database in batches, so a busy sweep does not issue one insert per
// channel attempt.
type AuditBatcher struct {
	db       *sql.DB
	size     int
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending []AuditEntry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewAuditBatcher(db *sql.DB) *AuditBatcher {
	return &AuditBatcher{
		db:       db,
		size:     defaultFlushSize,
		interval: defaultFlushInterval,
		now:      func() time.Time { return time.Now().UTC() },
		stopCh:   make(chan struct{}),
	}
}

// Record queues an audit entry, stamping it with the current time. A
// full buffer is flushed inline.
func (b *AuditBatcher) Record(e AuditEntry) {
	e.CreatedAt = b.now()

	b.mu.Lock()
	b.pending = append(b.pending, e)
	full := len(b.pending) >= b.size
	b.mu.Unlock()

	if full {
		b.Flush()
	}
}

// Flush writes all pending entries. Failed batches are re-queued so a
// transient database error does not lose audit rows.
func (b *AuditBatcher) Flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := insertAudit(b.db, batch); err != nil {
		log.Printf("notify: flush %d audit entries: %v", len(batch), err)
		b.mu.Lock()
		b.pending = append(batch, b.pending...)
		b.mu.Unlock()
	}
}

// Start begins periodic flushing in the background.
func (b *AuditBatcher) Start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.Flush()
			case <-b.stopCh:
				b.Flush()
				return
			}
		}
	}()
}

// Stop flushes remaining entries and waits for the background
// goroutine to exit.
func (b *AuditBatcher) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}
