package sync

// Kind names one of the two reconciliation flavors. Each kind has its own
// lock and cooldown.
type Kind string

const (
	KindProducts   Kind = "products"
	KindCategories Kind = "categories"
)

// Reasons a sync request is turned down.
const (
	ReasonInProgress   = "in_progress"
	ReasonCooldown     = "cooldown"
	ReasonNoCredential = "no_credential"
	ReasonError        = "error"
)

// RecordError names one upstream record that failed to reconcile.
type RecordError struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// Stats summarizes one reconciliation phase.
type Stats struct {
	Total          int           `json:"total"`
	Created        int           `json:"created"`
	Updated        int           `json:"updated"`
	Errors         int           `json:"errors"`
	ErrorsList     []RecordError `json:"errors_list,omitempty"`
	Skipped        int           `json:"skipped"`
	SkippedReasons []string      `json:"skipped_reasons,omitempty"`
}

func (s *Stats) addError(id int64, err error) {
	s.Errors++
	s.ErrorsList = append(s.ErrorsList, RecordError{ID: id, Error: err.Error()})
}

func (s *Stats) addSkip(reason string) {
	s.Skipped++
	s.SkippedReasons = append(s.SkippedReasons, reason)
}

// Result is what the scheduler hands back to its callers.
type Result struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Stats   *Stats `json:"stats,omitempty"`
}
