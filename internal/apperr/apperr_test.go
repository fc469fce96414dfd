package apperr_test

import (
	"complaintdesk/backend/internal/apperr"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{"validation", apperr.Validation("complaint.create", "title is required"), apperr.KindValidation},
		{"not found", apperr.NotFound("complaint.get", "complaint", "42"), apperr.KindNotFound},
		{"persistence", apperr.Persistence("complaint.transition", cause), apperr.KindPersistence},
		{"notification", apperr.Notification("notify.dispatch", cause), apperr.KindNotification},
		{"forbidden", apperr.Forbidden("complaint.list_all", "admins only"), apperr.KindForbidden},
		{"unauthorized", apperr.Unauthorized("auth", "missing token"), apperr.KindUnauthorized},
		{"wrapped", fmt.Errorf("handler: %w", apperr.Validation("x", "y")), apperr.KindValidation},
		{"plain", cause, apperr.KindUnknown},
		{"nil", nil, apperr.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, apperr.KindOf(tt.err))
		})
	}
}

func TestPersistenceUnwrapsCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := apperr.Persistence("complaint.transition", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, apperr.Is(err, apperr.KindPersistence))
	assert.False(t, apperr.Is(err, apperr.KindNotFound))
	assert.Contains(t, err.Error(), "complaint.transition")
	assert.Contains(t, err.Error(), "deadlock detected")
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "complaint 7 not found", apperr.Message(apperr.NotFound("op", "complaint", "7")))
	assert.Equal(t, "internal error", apperr.Message(errors.New("boom")))
	assert.Equal(t, "not_found", apperr.KindNotFound.String())
}
