package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImportState_CanTransition(t *testing.T) {
	assert.True(t, ImportDisabled.CanTransition(ImportReady))
	assert.True(t, ImportDisabled.CanTransition(ImportSmallReady))
	assert.True(t, ImportReady.CanTransition(ImportPending))
	assert.True(t, ImportPending.CanTransition(CheckForUpdates))
	assert.True(t, ImportPending.CanTransition(ImportFailed))
	assert.True(t, ImportPending.CanTransition(ImportTimedOut))
	assert.True(t, CheckForUpdates.CanTransition(UpdateReady))
	assert.True(t, UpdateReady.CanTransition(UpdatePending))
	assert.True(t, UpdatePending.CanTransition(UpdateLargeReady))
	assert.True(t, UpdateFailed.CanTransition(CheckForUpdates))
	assert.True(t, UpdateTimedOut.CanTransition(CheckForUpdates))
	assert.True(t, UpdateLargeReady.CanTransition(CheckForUpdates))

	assert.False(t, ImportDisabled.CanTransition(CheckForUpdates))
	assert.False(t, ImportDisabled.CanTransition(UpdateReady))
	assert.False(t, CheckForUpdates.CanTransition(UpdatePending))
	assert.False(t, UpdatePending.CanTransition(UpdateReady))
}

func TestImportState_AcceptsRemotePush(t *testing.T) {
	assert.True(t, CheckForUpdates.AcceptsRemotePush())

	for _, state := range []ImportState{
		ImportDisabled, ImportReady, ImportSmallReady, ImportPending,
		ImportFailed, ImportTimedOut, UpdateReady, UpdatePending,
		UpdateFailed, UpdateTimedOut, UpdateLargeReady,
	} {
		assert.False(t, state.AcceptsRemotePush(), "state %s", state)
	}
}

func TestImportState_Valid(t *testing.T) {
	assert.True(t, ImportDisabled.Valid())
	assert.True(t, UpdateLargeReady.Valid())
	assert.False(t, ImportState("BOGUS").Valid())
	assert.False(t, ImportState("").Valid())
}
