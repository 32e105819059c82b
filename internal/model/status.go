package model

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusRemoved    Status = "removed"
	StatusFailed     Status = "failed"
	StatusComplete   Status = "complete"
)

// Terminal reports whether no further attempts can follow.
func (s Status) Terminal() bool {
	switch s {
	case StatusRemoved, StatusFailed, StatusComplete:
		return true
	}

	return false
}

// A StatusFilter selects jobs by status when listing.
type StatusFilter map[Status]bool

var (
	FilterPending = StatusFilter{StatusScheduled: true, StatusProcessing: true}
	FilterDone    = StatusFilter{StatusRemoved: true, StatusFailed: true, StatusComplete: true}
	FilterAll     = StatusFilter{
		StatusScheduled: true, StatusProcessing: true,
		StatusRemoved: true, StatusFailed: true, StatusComplete: true,
	}
)

// ParseStatusFilter resolves a filter name: "pending", "done", "all" or
// any exact status name.
func ParseStatusFilter(name string) (StatusFilter, bool) {
	switch name {
	case "pending":
		return FilterPending, true
	case "done":
		return FilterDone, true
	case "all":
		return FilterAll, true
	}

	s := Status(name)
	if FilterAll[s] {
		return StatusFilter{s: true}, true
	}

	return nil, false
}
