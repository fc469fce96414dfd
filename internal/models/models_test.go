package models_test

import (
	"complaintdesk/backend/internal/models"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestComplaintBeforeCreate_Defaults verifies that the hook assigns an ID and the Open status.
func TestComplaintBeforeCreate_Defaults(t *testing.T) {
	// Arrange
	c := &models.Complaint{
		StudentID:   uuid.New().String(),
		Title:       "Wi-Fi down",
		Category:    models.CategoryWorkingHub,
		Description: "Lab 2 offline",
	}

	// Act
	err := c.BeforeCreate(nil)

	// Assert
	require.NoError(t, err)
	_, parseErr := uuid.Parse(c.ID)
	assert.NoError(t, parseErr, "ID must be a valid UUID")
	assert.Equal(t, models.StatusOpen, c.Status)
}

// TestComplaintBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestComplaintBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	c := &models.Complaint{ID: existingID, Category: models.CategoryPeer}

	err := c.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, c.ID)
}

func TestComplaintBeforeCreate_RejectsUnknownEnums(t *testing.T) {
	tests := []struct {
		name      string
		complaint models.Complaint
	}{
		{
			name:      "Unknown category",
			complaint: models.Complaint{Category: "Canteen"},
		},
		{
			name:      "Unknown status",
			complaint: models.Complaint{Category: models.CategoryOther, Status: "Closed"},
		},
		{
			name:      "Lower-case status",
			complaint: models.Complaint{Category: models.CategoryOther, Status: "open"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.complaint.BeforeCreate(nil)
			assert.Error(t, err)
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range models.Statuses {
		got, err := models.ParseStatus(string(s))
		assert.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := models.ParseStatus("Done")
	assert.Error(t, err)
	_, err = models.ParseStatus("")
	assert.Error(t, err)
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, models.CategoryAcademicCounsellor.Valid())
	assert.True(t, models.Category("Working Hub").Valid())
	assert.False(t, models.Category("working hub").Valid())
	assert.False(t, models.Category("").Valid())
	assert.Len(t, models.Categories, 6)
}

// TestHistoryEntryBeforeCreate_StampsTimeAndID verifies that a missing timestamp is filled in.
func TestHistoryEntryBeforeCreate_StampsTimeAndID(t *testing.T) {
	e := &models.StatusHistoryEntry{
		ComplaintID: uuid.New().String(),
		OldStatus:   models.StatusOpen,
		NewStatus:   models.StatusInProgress,
		UpdatedBy:   uuid.New().String(),
	}

	before := time.Now().UTC()
	err := e.BeforeCreate(nil)

	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.UpdatedAt.Before(before.Add(-time.Second)))
}

func TestHistoryEntryBeforeCreate_KeepsSuppliedTime(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	e := &models.StatusHistoryEntry{OldStatus: models.StatusOpen, NewStatus: models.StatusResolved, UpdatedAt: at}

	require.NoError(t, e.BeforeCreate(nil))
	assert.Equal(t, at, e.UpdatedAt)
}

// TestHistoryEntryIDs_AreOrdered verifies that IDs sort in creation order.
func TestHistoryEntryIDs_AreOrdered(t *testing.T) {
	at := time.Now().UTC()
	var prev string
	for i := 0; i < 50; i++ {
		e := &models.StatusHistoryEntry{OldStatus: models.StatusOpen, NewStatus: models.StatusOpen, UpdatedAt: at}
		require.NoError(t, e.BeforeCreate(nil))
		assert.Greater(t, e.ID, prev)
		prev = e.ID
	}
}

func TestHistoryEntry_IsImmutable(t *testing.T) {
	e := &models.StatusHistoryEntry{}
	assert.ErrorIs(t, e.BeforeUpdate(nil), models.ErrHistoryImmutable)
	assert.ErrorIs(t, e.BeforeDelete(nil), models.ErrHistoryImmutable)
	assert.Equal(t, "status_history", e.TableName())
}

func TestProfileDisplayName(t *testing.T) {
	var missing *models.Profile
	assert.Equal(t, "Student", missing.DisplayName())
	assert.Equal(t, "Student", (&models.Profile{}).DisplayName())
	assert.Equal(t, "Asha", (&models.Profile{Name: "Asha"}).DisplayName())
}

func TestNotificationBeforeCreate_Pending(t *testing.T) {
	n := &models.Notification{Kind: models.NotificationComplaintCreated}
	require.NoError(t, n.BeforeCreate(nil))
	assert.Equal(t, models.NotificationPending, n.State)
}

// TestComplaintStructTags verifies that struct tags are correctly defined for GORM and JSON.
func TestComplaintStructTags(t *testing.T) {
	complaintType := reflect.TypeOf(models.Complaint{})

	idField, found := complaintType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")
	assert.Equal(t, "id", idField.Tag.Get("json"))

	studentField, found := complaintType.FieldByName("StudentID")
	assert.True(t, found)
	assert.Contains(t, studentField.Tag.Get("gorm"), "index")
	assert.Equal(t, "student_id", studentField.Tag.Get("json"))

	remarksField, found := complaintType.FieldByName("AdminRemarks")
	assert.True(t, found)
	assert.Equal(t, "admin_remarks,omitempty", remarksField.Tag.Get("json"))
}

// BenchmarkHistoryEntryBeforeCreate measures ID generation performance.
func BenchmarkHistoryEntryBeforeCreate(b *testing.B) {
	e := &models.StatusHistoryEntry{OldStatus: models.StatusOpen, NewStatus: models.StatusResolved}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.ID = ""
		_ = e.BeforeCreate(nil)
	}
}
