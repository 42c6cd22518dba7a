package domain

// Tier is the minimum verbosity at which a notification is shown
type Tier int

const (
	// TierAlways is shown regardless of verbosity
	TierAlways Tier = 0
	// TierNormal is shown with -v
	TierNormal Tier = 1
	// TierDetailed is shown with -vv (per-file output)
	TierDetailed Tier = 2
)

// Category is the semantic intent of a notification
type Category int

const (
	CategoryInfo Category = iota
	CategorySuccess
	CategoryWarning
	CategoryError
	CategoryHighlight
)

// String returns the string representation of the category
func (c Category) String() string {
	switch c {
	case CategoryInfo:
		return "info"
	case CategorySuccess:
		return "success"
	case CategoryWarning:
		return "warning"
	case CategoryError:
		return "error"
	case CategoryHighlight:
		return "highlight"
	default:
		return "unknown"
	}
}

// Notifier receives user-facing messages from the sync core.
// Implementations decide formatting; the core only decides intent and tier.
type Notifier interface {
	Notify(msg string, tier Tier, category Category)
}

// Confirmer asks the user a yes/no question.
// Implementations keep asking until they get a usable answer.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// Proceeder asks a single go/no-go question without re-prompting.
// Confirmers that also implement it answer the sync-wide proceed prompt.
type Proceeder interface {
	Proceed(prompt string) (bool, error)
}

// NullNotifier discards all notifications
type NullNotifier struct{}

func (NullNotifier) Notify(msg string, tier Tier, category Category) {}
