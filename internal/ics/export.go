package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"tempex/internal/dates"
	"tempex/internal/model"
)

const productID = "-//tempex//temporal expressions//EN"

// uidNamespace scopes the name-based UUIDs used as VEVENT UIDs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tempex"))

// UID returns a stable identifier for an occurrence. The same schedule
// and date always produce the same UID, so subscribers see refreshed
// feeds as updates rather than new events.
func UID(occ model.Occurrence) string {
	return uuid.NewSHA1(uidNamespace, []byte(occ.InstanceKey())).String() + "@tempex"
}

// Export renders occurrences as a VCALENDAR with one all-day VEVENT per
// occurrence. stamp is written as DTSTAMP on every event.
func Export(name string, occs []model.Occurrence, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, occ := range occs {
		day := dates.Midnight(occ.Date)

		ev := cal.AddEvent(UID(occ))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.Add(dates.Day))
		summary := occ.Summary
		if summary == "" {
			summary = occ.Schedule
		}
		ev.SetSummary(summary)
	}

	return cal.Serialize()
}
