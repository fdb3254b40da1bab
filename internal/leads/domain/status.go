package domain

// Status is a lead's position on the recruitment pipeline.
type Status string

const (
	StatusNew         Status = "New"
	StatusContacted   Status = "Contacted"
	StatusScheduled   Status = "Scheduled"
	StatusEnrolled    Status = "Enrolled"
	StatusNotEligible Status = "Not Eligible"
	StatusWithdrawn   Status = "Withdrawn"
	// StatusTrialClosed is imposed when the protocol stops recruiting.
	StatusTrialClosed Status = "Trial Closed"
)

var knownStatuses = map[Status]struct{}{
	StatusNew:         {},
	StatusContacted:   {},
	StatusScheduled:   {},
	StatusEnrolled:    {},
	StatusNotEligible: {},
	StatusWithdrawn:   {},
	StatusTrialClosed: {},
}

var terminalStatuses = map[Status]bool{
	StatusEnrolled:    true,
	StatusNotEligible: true,
	StatusWithdrawn:   true,
	StatusTrialClosed: true,
}

// AllStatuses lists the pipeline columns in board order.
func AllStatuses() []Status {
	return []Status{
		StatusNew,
		StatusContacted,
		StatusScheduled,
		StatusEnrolled,
		StatusNotEligible,
		StatusWithdrawn,
		StatusTrialClosed,
	}
}

func (s Status) IsKnown() bool {
	_, ok := knownStatuses[s]
	return ok
}

// IsTerminal reports whether no ordinary transition may leave s.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts the exact pipeline label.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.IsKnown()
}
