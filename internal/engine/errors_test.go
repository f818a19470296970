package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lifeline/lifeline/internal/store"
)

func TestRuntimeError_Error(t *testing.T) {
	err := NewSnapshotError(3, store.ErrStorageUnavailable)
	assert.Equal(t, "SNAPSHOT_FAILED: pending records could not be listed (pass=3): storage unavailable", err.Error())

	err = NewSaveError("sos-1", errors.New("disk full"))
	assert.Equal(t, "SAVE_FAILED: record could not be persisted (record=sos-1): disk full", err.Error())
}

func TestRuntimeError_Classification(t *testing.T) {
	save := fmt.Errorf("wrapped: %w", NewSaveError("sos-1", store.ErrDuplicateID))
	snap := fmt.Errorf("wrapped: %w", NewSnapshotError(1, store.ErrStorageUnavailable))

	assert.True(t, IsSaveError(save))
	assert.False(t, IsSnapshotError(save))
	assert.True(t, IsSnapshotError(snap))
	assert.False(t, IsSaveError(snap))
	assert.False(t, IsSaveError(errors.New("plain")))

	assert.ErrorIs(t, save, store.ErrDuplicateID)
	assert.ErrorIs(t, snap, store.ErrStorageUnavailable)
}
