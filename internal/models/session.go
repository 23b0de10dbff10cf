package models

import "time"

// MinSessionDuration is the shortest session the store accepts.
const MinSessionDuration = 15 * time.Minute

// TimeLayout is the wall-clock wire format for session boundaries.
const TimeLayout = "15:04"

// Session is a time-ranged calendar entry without a position ceiling.
// Multi-day sessions set EndDate after Date and are visible on every date
// of the closed interval [Date, EndDate].
type Session struct {
	ID          string      `json:"id"`
	Date        string      `json:"date"`
	EndDate     string      `json:"endDate,omitempty"`
	StartTime   string      `json:"startTime"`
	EndTime     string      `json:"endTime"`
	BlockType   string      `json:"blockType"`
	Title       string      `json:"title"`
	SeriesID    string      `json:"seriesId,omitempty"`
	SeriesIndex int         `json:"seriesIndex,omitempty"`
	SeriesTotal int         `json:"seriesTotal,omitempty"`
	RepeatRule  *RepeatRule `json:"repeatRule,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// CloneSession returns a deep copy of a session.
func CloneSession(s Session) Session {
	out := s
	if s.RepeatRule != nil {
		rule := *s.RepeatRule
		if s.RepeatRule.CustomWeekdays != nil {
			rule.CustomWeekdays = append([]int(nil), s.RepeatRule.CustomWeekdays...)
		}
		out.RepeatRule = &rule
	}
	return out
}

// CloneSessionDays deep-copies a date-keyed session snapshot.
func CloneSessionDays(days map[string][]Session) map[string][]Session {
	out := make(map[string][]Session, len(days))
	for date, sessions := range days {
		copied := make([]Session, len(sessions))
		for i, s := range sessions {
			copied[i] = CloneSession(s)
		}
		out[date] = copied
	}
	return out
}
