package model

// ImportState tracks where a repository sits in its import lifecycle, from
// first discovery through steady-state polling and webhook-driven updates.
type ImportState string

const (
	// Discovery and initial import.
	ImportDisabled   ImportState = "IMPORT_DISABLED"
	ImportReady      ImportState = "IMPORT_READY"
	ImportSmallReady ImportState = "IMPORT_SMALL_READY"
	ImportPending    ImportState = "IMPORT_PENDING"
	ImportFailed     ImportState = "IMPORT_FAILED"
	ImportTimedOut   ImportState = "IMPORT_TIMED_OUT"

	// Steady state and incremental updates.
	CheckForUpdates  ImportState = "CHECK_FOR_UPDATES"
	UpdateReady      ImportState = "UPDATE_READY"
	UpdatePending    ImportState = "UPDATE_PENDING"
	UpdateFailed     ImportState = "UPDATE_FAILED"
	UpdateTimedOut   ImportState = "UPDATE_TIMED_OUT"
	UpdateLargeReady ImportState = "UPDATE_LARGE_READY"
)

// importTransitions lists the permitted next states for each import state.
// Import and update workers drive most transitions; a remote push notification
// may only take CHECK_FOR_UPDATES to UPDATE_READY.
var importTransitions = map[ImportState][]ImportState{
	ImportDisabled:   {ImportReady, ImportSmallReady},
	ImportReady:      {ImportPending, ImportDisabled},
	ImportSmallReady: {ImportPending, ImportDisabled},
	ImportPending:    {ImportFailed, ImportTimedOut, CheckForUpdates},
	ImportFailed:     {ImportReady, ImportSmallReady, ImportDisabled},
	ImportTimedOut:   {ImportReady, ImportSmallReady, ImportDisabled},
	CheckForUpdates:  {UpdateReady, ImportDisabled},
	UpdateReady:      {UpdatePending},
	UpdatePending:    {UpdateFailed, UpdateTimedOut, UpdateLargeReady, CheckForUpdates},
	UpdateFailed:     {CheckForUpdates},
	UpdateTimedOut:   {CheckForUpdates},
	UpdateLargeReady: {UpdatePending, CheckForUpdates},
}

// CanTransition reports whether moving from state from to state to is a
// permitted import-lifecycle transition.
func (from ImportState) CanTransition(to ImportState) bool {
	for _, next := range importTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AcceptsRemotePush reports whether a remote push notification may advance a
// repository out of this state. Only repositories already in steady-state
// polling react to pushes; everything else ignores them so webhook storms
// cannot double-queue work.
func (s ImportState) AcceptsRemotePush() bool {
	return s == CheckForUpdates
}

// Valid reports whether s is a known import state.
func (s ImportState) Valid() bool {
	_, ok := importTransitions[s]
	return ok
}
