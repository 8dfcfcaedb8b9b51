package scheduler

import "time"

// Interval is a confirmed half-open [Start, End) booking held by a user.
type Interval struct {
	ScheduleID int64
	Start      time.Time
	End        time.Time
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints do not overlap: [10:00, 11:00) and [11:00, 12:00) are compatible.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Conflict identifies an existing confirmed interval that overlaps a
// candidate.
type Conflict struct {
	WithScheduleID int64
	Start          time.Time
	End            time.Time
}

// Detect returns every confirmed interval that overlaps the candidate
// [start, end). Intervals whose ScheduleID equals excludeID are skipped so a
// schedule being edited never conflicts with itself. Pass excludeID 0 to
// exclude nothing.
//
// Detect is a pure predicate over the slice it is given; callers that commit
// a confirmed interval must evaluate it inside the transaction that performs
// the commit, otherwise two concurrent check-then-commit sequences can both
// pass against stale reads.
func Detect(existing []Interval, start, end time.Time, excludeID int64) []Conflict {
	var conflicts []Conflict
	for _, iv := range existing {
		if excludeID != 0 && iv.ScheduleID == excludeID {
			continue
		}
		if Overlaps(start, end, iv.Start, iv.End) {
			conflicts = append(conflicts, Conflict{
				WithScheduleID: iv.ScheduleID,
				Start:          iv.Start,
				End:            iv.End,
			})
		}
	}
	return conflicts
}

// HasConflict reports whether the candidate interval overlaps any confirmed
// interval, excluding the schedule identified by excludeID.
func HasConflict(existing []Interval, start, end time.Time, excludeID int64) bool {
	for _, iv := range existing {
		if excludeID != 0 && iv.ScheduleID == excludeID {
			continue
		}
		if Overlaps(start, end, iv.Start, iv.End) {
			return true
		}
	}
	return false
}
