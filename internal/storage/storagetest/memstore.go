// Package storagetest provides an in-memory storage.Storage for tests.
package storagetest

import (
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
)

// MemStore keeps every table in memory. Transactions are serialized and
// restore a snapshot when the callback fails.
type MemStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	complaints    map[string]models.Complaint
	seq           map[string]int
	nextSeq       int
	history       []models.StatusHistoryEntry
	profiles      map[string]models.Profile
	roles         map[string]models.Role
	notifications []models.Notification
	nextNotifID   uint

	// Failures makes the method with the given name return the error.
	Failures map[string]error
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		complaints: make(map[string]models.Complaint),
		seq:        make(map[string]int),
		profiles:   make(map[string]models.Profile),
		roles:      make(map[string]models.Role),
		Failures:   make(map[string]error),
	}
}

var _ storage.Storage = (*MemStore)(nil)

// FailOn makes method return err until cleared with FailOn(method, nil).
func (m *MemStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Failures, method)
		return
	}
	m.Failures[method] = err
}

func (m *MemStore) failure(method string) error {
	return m.Failures[method]
}

// AddProfile registers a directory entry.
func (m *MemStore) AddProfile(p models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

// Notifications returns a copy of the outbox.
func (m *MemStore) Notifications() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Notification, len(m.notifications))
	for i, n := range m.notifications {
		out[i] = copyNotification(n)
	}
	return out
}

func copyNotification(n models.Notification) models.Notification {
	n.Delivered = append(pq.StringArray(nil), n.Delivered...)
	return n
}

// ComplaintCount returns the number of stored complaints.
func (m *MemStore) ComplaintCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.complaints)
}

// HistoryCount returns the number of ledger entries across all complaints.
func (m *MemStore) HistoryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

type snapshot struct {
	complaints    map[string]models.Complaint
	seq           map[string]int
	nextSeq       int
	history       []models.StatusHistoryEntry
	roles         map[string]models.Role
	notifications []models.Notification
	nextNotifID   uint
}

func (m *MemStore) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := snapshot{
		complaints:    make(map[string]models.Complaint, len(m.complaints)),
		seq:           make(map[string]int, len(m.seq)),
		nextSeq:       m.nextSeq,
		history:       append([]models.StatusHistoryEntry(nil), m.history...),
		roles:         make(map[string]models.Role, len(m.roles)),
		notifications: append([]models.Notification(nil), m.notifications...),
		nextNotifID:   m.nextNotifID,
	}
	for k, v := range m.complaints {
		s.complaints[k] = v
	}
	for k, v := range m.seq {
		s.seq[k] = v
	}
	for k, v := range m.roles {
		s.roles[k] = v
	}
	return s
}

func (m *MemStore) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.complaints = s.complaints
	m.seq = s.seq
	m.nextSeq = s.nextSeq
	m.history = s.history
	m.roles = s.roles
	m.notifications = s.notifications
	m.nextNotifID = s.nextNotifID
}

func (m *MemStore) Transaction(ctx context.Context, fn func(tx storage.Storage) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	err := m.failure("Transaction")
	m.mu.Unlock()
	if err != nil {
		return err
	}
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *MemStore) CreateComplaint(ctx context.Context, complaint *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateComplaint"); err != nil {
		return err
	}
	if err := complaint.BeforeCreate(nil); err != nil {
		return err
	}
	if _, exists := m.complaints[complaint.ID]; exists {
		return fmt.Errorf("duplicate complaint id %s", complaint.ID)
	}
	now := time.Now().UTC()
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = now
	}
	if complaint.UpdatedAt.IsZero() {
		complaint.UpdatedAt = complaint.CreatedAt
	}
	m.complaints[complaint.ID] = *complaint
	m.nextSeq++
	m.seq[complaint.ID] = m.nextSeq
	return nil
}

func (m *MemStore) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	return m.getComplaint("GetComplaint", id)
}

func (m *MemStore) GetComplaintForUpdate(ctx context.Context, id string) (*models.Complaint, error) {
	return m.getComplaint("GetComplaintForUpdate", id)
}

func (m *MemStore) getComplaint(method, id string) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(method); err != nil {
		return nil, err
	}
	c, ok := m.complaints[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (m *MemStore) ListComplaintsForOwner(ctx context.Context, studentID string) ([]models.Complaint, error) {
	return m.listComplaints("ListComplaintsForOwner", func(c models.Complaint) bool {
		return c.StudentID == studentID
	})
}

func (m *MemStore) ListComplaints(ctx context.Context) ([]models.Complaint, error) {
	return m.listComplaints("ListComplaints", func(models.Complaint) bool { return true })
}

func (m *MemStore) listComplaints(method string, keep func(models.Complaint) bool) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(method); err != nil {
		return nil, err
	}
	out := make([]models.Complaint, 0, len(m.complaints))
	for _, c := range m.complaints {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})
	return out, nil
}

func (m *MemStore) UpdateComplaint(ctx context.Context, id string, upd models.ComplaintUpdate) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpdateComplaint"); err != nil {
		return nil, err
	}
	if !upd.Status.Valid() {
		return nil, fmt.Errorf("update complaint %s: unknown status %q", id, upd.Status)
	}
	c, ok := m.complaints[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if upd.UpdatedAt.IsZero() {
		upd.UpdatedAt = time.Now().UTC()
	}
	c.Status = upd.Status
	c.AdminRemarks = upd.AdminRemarks
	c.ResolvedBy = upd.ResolvedBy
	c.UpdatedAt = upd.UpdatedAt
	m.complaints[id] = c
	return &c, nil
}

func (m *MemStore) AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("AppendHistory"); err != nil {
		return err
	}
	if err := entry.BeforeCreate(nil); err != nil {
		return err
	}
	m.history = append(m.history, *entry)
	return nil
}

func (m *MemStore) ListHistory(ctx context.Context, complaintID string) ([]models.StatusHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListHistory"); err != nil {
		return nil, err
	}
	var out []models.StatusHistoryEntry
	for _, e := range m.history {
		if e.ComplaintID == complaintID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetProfile"); err != nil {
		return nil, err
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (m *MemStore) GetRole(ctx context.Context, userID string) (models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetRole"); err != nil {
		return "", err
	}
	if r, ok := m.roles[userID]; ok {
		return r, nil
	}
	return models.RoleStudent, nil
}

func (m *MemStore) SetRole(ctx context.Context, userID string, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("SetRole"); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("set role for %s: unknown role %q", userID, role)
	}
	m.roles[userID] = role
	return nil
}

func (m *MemStore) EnqueueNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("EnqueueNotification"); err != nil {
		return err
	}
	if err := n.BeforeCreate(nil); err != nil {
		return err
	}
	m.nextNotifID++
	n.ID = m.nextNotifID
	n.CreatedAt = time.Now().UTC()
	n.UpdatedAt = n.CreatedAt
	m.notifications = append(m.notifications, copyNotification(*n))
	return nil
}

func (m *MemStore) ClaimNotifications(ctx context.Context, limit int, now time.Time) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ClaimNotifications"); err != nil {
		return nil, err
	}
	var out []models.Notification
	for _, n := range m.notifications {
		leaseExpired := n.State == models.NotificationSending && n.LockedUntil != nil && n.LockedUntil.Before(now)
		if n.State != models.NotificationPending && !leaseExpired {
			continue
		}
		out = append(out, copyNotification(n))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("SaveNotification"); err != nil {
		return err
	}
	for i := range m.notifications {
		if m.notifications[i].ID == n.ID {
			n.UpdatedAt = time.Now().UTC()
			m.notifications[i] = copyNotification(*n)
			return nil
		}
	}
	return storage.ErrNotFound
}
