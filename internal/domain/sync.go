package domain

// Direction defines which physical tree is treated as the truth
type Direction string

const (
	// DirectionBackup syncs from --src into --dest
	DirectionBackup Direction = "backup"

	// DirectionRestore syncs from --dest back into --src and never deletes
	DirectionRestore Direction = "restore"
)

// IsValid checks if the direction is a known value
func (d Direction) IsValid() bool {
	switch d {
	case DirectionBackup, DirectionRestore:
		return true
	}
	return false
}

// AllowsDelete reports whether destination-only files may be removed
func (d Direction) AllowsDelete() bool {
	return d == DirectionBackup
}

// Roots maps the physical src/dest pair to the logical (from, to) pair
func (d Direction) Roots(src, dest string) (from, to string) {
	if d == DirectionRestore {
		return dest, src
	}
	return src, dest
}

// DiffSummary is the classification of two scans
type DiffSummary struct {
	SourceCount      int
	DestinationCount int

	// New paths exist only in the logical source
	New []string

	// Modified paths exist on both sides with differing or unknown hashes
	Modified []string

	// Deleted paths exist only in the logical destination (backup only)
	Deleted []string
}

// Changes returns the number of paths that need an action
func (s DiffSummary) Changes() int {
	return len(s.New) + len(s.Modified) + len(s.Deleted)
}

// SyncAction represents a single operation in a sync plan
type SyncAction struct {
	// Type of action to perform
	Type ActionType

	// Path is the relative path being operated on
	Path string

	// Source entry on the logical source side (nil for delete)
	Source *ScanEntry

	// Target entry on the logical destination side (nil for new files)
	Target *ScanEntry

	// Reason explains why this action was chosen
	Reason string
}

// ActionType represents the type of sync action
type ActionType string

const (
	ActionCopy   ActionType = "copy"
	ActionDelete ActionType = "delete"
)

// SyncPlan represents a complete plan for synchronization
type SyncPlan struct {
	// Direction the plan was built for
	Direction Direction

	// Actions to execute in order
	Actions []SyncAction

	// Stats summary
	Stats SyncPlanStats
}

// SyncPlanStats provides summary statistics for a sync plan
type SyncPlanStats struct {
	TotalFiles    int
	FilesToCopy   int
	FilesToDelete int
	BytesToCopy   int64
}
