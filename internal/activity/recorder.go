package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

// Store persists activity rows.
type Store interface {
	InsertActivity(ctx context.Context, record models.UserActivity) error
}

// Recorder writes "who did what, when" records off the request path.
// Record never blocks and never fails the caller: when the buffer is
// full or the store errors, the record is dropped and logged.
type Recorder struct {
	store   Store
	log     *logger.Logger
	records chan models.UserActivity
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewRecorder(store Store, log *logger.Logger) *Recorder {
	r := &Recorder{
		store:   store,
		log:     log,
		records: make(chan models.UserActivity, 256),
		done:    make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record queues an activity entry for the given user. Records arriving
// after Close are dropped.
func (r *Recorder) Record(userID int64, action string) {
	record := models.UserActivity{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logWarn(fmt.Sprintf("recorder closed, dropping %q for user %d", action, userID))
		return
	}
	select {
	case r.records <- record:
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		r.logWarn(fmt.Sprintf("activity buffer full, dropping %q for user %d", action, userID))
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for record := range r.records {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.InsertActivity(ctx, record); err != nil {
			r.logWarn(fmt.Sprintf("failed to record activity %q for user %d: %v", record.Action, record.UserID, err))
		}
		cancel()
	}
}

// Close stops accepting records and waits for queued ones to be
// written. Closing twice is a no-op.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.records)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) logWarn(msg string) {
	if r.log != nil {
		r.log.Warn("ACTIVITY", msg)
	}
}
