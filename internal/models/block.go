package models

import "time"

// MaxBlocksPerDay is the fixed position capacity of a single calendar day.
const MaxBlocksPerDay = 4

// DateLayout is the local-date wire format used for every calendar key.
const DateLayout = "2006-01-02"

// RepeatType enumerates supported recurrence frequencies.
type RepeatType string

const (
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
	RepeatCustom  RepeatType = "custom"
)

// RepeatEndMode selects how a recurrence terminates.
type RepeatEndMode string

const (
	RepeatEndByCount RepeatEndMode = "count"
	RepeatEndByDate  RepeatEndMode = "date"
)

// RepeatRule describes how a single appointment expands into a series.
// Exactly one of Count and EndDate is meaningful, selected by EndMode.
type RepeatRule struct {
	Type           RepeatType    `json:"type"`
	CustomWeekdays []int         `json:"customWeekdays,omitempty"` // 0=Sunday .. 6=Saturday
	EndMode        RepeatEndMode `json:"endMode"`
	Count          int           `json:"count,omitempty"`
	EndDate        string        `json:"endDate,omitempty"`
}

// BlockTask is a checklist item carried by a block allocation.
type BlockTask struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// BlockAllocation occupies one of the four positions of a calendar day.
// Date+Position is unique within the store. Series members share SeriesID;
// only the original occurrence (SeriesIndex 1) carries the repeat rule.
type BlockAllocation struct {
	ID                string      `json:"id"`
	Date              string      `json:"date"`
	Position          int         `json:"position"`
	BlockType         string      `json:"blockType"`
	Title             string      `json:"title"`
	Rechtsgebiet      string      `json:"rechtsgebiet,omitempty"`
	Unterrechtsgebiet string      `json:"unterrechtsgebiet,omitempty"`
	ContentRef        string      `json:"contentRef,omitempty"`
	Tasks             []BlockTask `json:"tasks,omitempty"`
	SeriesID          string      `json:"seriesId,omitempty"`
	SeriesIndex       int         `json:"seriesIndex,omitempty"`
	SeriesTotal       int         `json:"seriesTotal,omitempty"`
	RepeatRule        *RepeatRule `json:"repeatRule,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// CloneTasks returns a deep copy of the task list.
func CloneTasks(tasks []BlockTask) []BlockTask {
	if tasks == nil {
		return nil
	}
	out := make([]BlockTask, len(tasks))
	copy(out, tasks)
	return out
}

// CloneBlock returns a deep copy of a block allocation.
func CloneBlock(b BlockAllocation) BlockAllocation {
	out := b
	out.Tasks = CloneTasks(b.Tasks)
	if b.RepeatRule != nil {
		rule := *b.RepeatRule
		if b.RepeatRule.CustomWeekdays != nil {
			rule.CustomWeekdays = append([]int(nil), b.RepeatRule.CustomWeekdays...)
		}
		out.RepeatRule = &rule
	}
	return out
}

// CloneBlockDays deep-copies a whole date-keyed block snapshot.
func CloneBlockDays(days map[string][]BlockAllocation) map[string][]BlockAllocation {
	out := make(map[string][]BlockAllocation, len(days))
	for date, blocks := range days {
		copied := make([]BlockAllocation, len(blocks))
		for i, b := range blocks {
			copied[i] = CloneBlock(b)
		}
		out[date] = copied
	}
	return out
}
