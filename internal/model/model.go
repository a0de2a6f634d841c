package model

import "time"

// Occurrence is one date on which a named schedule matches.
type Occurrence struct {
	// Schedule is the config name of the schedule that matched.
	Schedule string `json:"schedule"`
	// Summary is the human-friendly label of the schedule.
	Summary string `json:"summary"`

	// Date is midnight UTC of the matching day.
	Date time.Time `json:"date"`
}

// InstanceKey uniquely identifies a single occurrence of a schedule.
func (o Occurrence) InstanceKey() string {
	return o.Schedule + "@" + o.Date.Format(time.DateOnly)
}
