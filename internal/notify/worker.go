package notify

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/metrics"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Worker drains the notification outbox.
type Worker struct {
	Storage     storage.Storage
	Dispatcher  Dispatcher
	AdminEmails []string

	BatchSize   int
	Interval    time.Duration
	SendTimeout time.Duration
	// Lease is how long a claimed row stays hidden from other workers.
	Lease       time.Duration
	MaxAttempts int
}

// DefaultChannel names a Dispatcher that is not a Multi.
const DefaultChannel = "default"

// NewWorker creates a worker with the default tunables.
func NewWorker(s storage.Storage, d Dispatcher, adminEmails []string) *Worker {
	return &Worker{
		Storage:     s,
		Dispatcher:  d,
		AdminEmails: adminEmails,
		BatchSize:   config.NotificationBatchSize,
		Interval:    config.NotificationPollInterval,
		SendTimeout: config.NotificationSendTimeout,
		Lease:       config.NotificationLease,
		MaxAttempts: config.MaxNotificationAttempts,
	}
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	log.Printf("INFO: Notification worker started (batch %d, every %s)", w.BatchSize, w.Interval)
	for {
		if _, err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			log.Printf("ERROR: Notification batch failed: %v", err)
		}

		select {
		case <-ctx.Done():
			log.Println("INFO: Notification worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessBatch leases up to BatchSize deliverable rows and attempts each once.
// It returns the number of rows leased. Delivery failures are recorded on the
// rows; only failures to persist a result are returned.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	leased, err := w.lease(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	for i := range leased {
		n := &leased[i]
		w.deliver(ctx, n)
		if err := w.Storage.SaveNotification(ctx, n); err != nil {
			log.Printf("ERROR: Failed to save outcome of notification %d: %v", n.ID, err)
			errs = append(errs, fmt.Errorf("save notification %d: %w", n.ID, err))
		}
	}
	return len(leased), errors.Join(errs...)
}

// lease marks claimed rows as sending in a short transaction, so delivery
// happens without holding row locks.
func (w *Worker) lease(ctx context.Context) ([]models.Notification, error) {
	var leased []models.Notification
	err := w.Storage.Transaction(ctx, func(tx storage.Storage) error {
		now := time.Now().UTC()
		pending, err := tx.ClaimNotifications(ctx, w.BatchSize, now)
		if err != nil {
			return err
		}
		until := now.Add(w.Lease)
		for i := range pending {
			pending[i].State = models.NotificationSending
			pending[i].LockedUntil = &until
			if err := tx.SaveNotification(ctx, &pending[i]); err != nil {
				return err
			}
		}
		leased = pending
		return nil
	})
	if err != nil {
		return nil, err
	}
	return leased, nil
}

func (w *Worker) deliver(ctx context.Context, n *models.Notification) {
	profile, err := w.Storage.GetProfile(ctx, n.StudentID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.record(n, apperr.Notification("notify.deliver", err))
		return
	}
	if profile == nil {
		log.Printf("WARNING: No profile for student %s, notification %d goes out without a student address", n.StudentID, n.ID)
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.SendTimeout)
	defer cancel()

	channels, ok := w.Dispatcher.(Multi)
	if !ok {
		channels = Multi{{Name: DefaultChannel, Dispatcher: w.Dispatcher}}
	}
	accepted, err := channels.DispatchSkipping(sendCtx, BuildPayload(*n, profile, w.AdminEmails), n.HasDelivered)
	n.Delivered = append(n.Delivered, accepted...)
	if err != nil {
		err = apperr.Notification("notify.deliver", err)
	}
	w.record(n, err)
}

func (w *Worker) record(n *models.Notification, err error) {
	n.Attempts++
	n.LockedUntil = nil
	if err == nil {
		now := time.Now().UTC()
		n.State = models.NotificationSent
		n.LastError = ""
		n.ProcessedAt = &now
		metrics.Notifications.WithLabelValues(string(n.Kind), "sent").Inc()
		log.Printf("INFO: Notification %d (%s) for complaint %s sent", n.ID, n.Kind, n.ComplaintID)
		return
	}

	n.LastError = err.Error()
	if n.Attempts >= w.MaxAttempts {
		now := time.Now().UTC()
		n.State = models.NotificationFailed
		n.ProcessedAt = &now
		metrics.Notifications.WithLabelValues(string(n.Kind), "failed").Inc()
		log.Printf("ERROR: Notification %d (%s) for complaint %s failed after %d attempts: %v", n.ID, n.Kind, n.ComplaintID, n.Attempts, err)
		return
	}
	n.State = models.NotificationPending
	metrics.Notifications.WithLabelValues(string(n.Kind), "retry").Inc()
	log.Printf("WARNING: Notification %d (%s) for complaint %s attempt %d failed: %v", n.ID, n.Kind, n.ComplaintID, n.Attempts, err)
}
