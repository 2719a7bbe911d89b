package model

import "time"

// WeeklyRow is one (day, model) cell of the weekly plan.
type WeeklyRow struct {
	Day       string  `yaml:"day"`
	Factory   string  `yaml:"factory,omitempty"`
	Model     string  `yaml:"model"`
	Pairs     int     `yaml:"pairs"`
	Headcount int     `yaml:"headcount"`
	Hours     float64 `yaml:"hours"`
}

// WeeklySchedule is the weekly optimizer's plan, read-only downstream.
type WeeklySchedule struct {
	Rows []WeeklyRow `yaml:"rows"`
}

// Pairs returns the planned quantity for a (model, day) cell.
func (s *WeeklySchedule) Pairs(modelID, day string) int {
	for _, r := range s.Rows {
		if r.Model == modelID && r.Day == day {
			return r.Pairs
		}
	}
	return 0
}

// DayPairs sums planned pairs across models for one day.
func (s *WeeklySchedule) DayPairs(day string) int {
	total := 0
	for _, r := range s.Rows {
		if r.Day == day {
			total += r.Pairs
		}
	}
	return total
}

// DaySummary is the per-day slice of the weekly summary.
type DaySummary struct {
	Day                string  `yaml:"day"`
	Pairs              int     `yaml:"pairs"`
	HeadcountNeeded    int     `yaml:"headcount_needed"`
	HeadcountAvailable int     `yaml:"headcount_available"`
	Utilization        float64 `yaml:"utilization_pct"`
	OvertimeHours      float64 `yaml:"overtime_hours"`
}

// ModelSummary is the per-model slice of the weekly summary.
type ModelSummary struct {
	Model      string  `yaml:"model"`
	Volume     int     `yaml:"volume"` // effective volume after maquila/override
	Produced   int     `yaml:"produced"`
	Tardiness  int     `yaml:"tardiness"`
	Complete   float64 `yaml:"complete_pct"`
	SpanDays   int     `yaml:"span_days"`
	ActiveDays int     `yaml:"active_days"`
}

// WeeklySummary reports solver status and aggregate metrics.
type WeeklySummary struct {
	Status    string         `yaml:"status"`
	Objective float64        `yaml:"objective"`
	WallTime  time.Duration  `yaml:"wall_time"`
	Days      []DaySummary   `yaml:"days"`
	Models    []ModelSummary `yaml:"models"`
}

// BlockEntry is one scheduled (model, operation) row of a day, with
// per-block pair quantities. Robot operations emit one entry per robot.
type BlockEntry struct {
	Model     string       `yaml:"model"`
	Fraction  int          `yaml:"fraction"`
	Operation string       `yaml:"operation"`
	Resource  ResourceKind `yaml:"resource"`
	Rate      float64      `yaml:"rate"`
	Headcount int          `yaml:"headcount"`
	Robot     string       `yaml:"robot,omitempty"`
	Pairs     []int        `yaml:"pairs"` // indexed by block
	Total     int          `yaml:"total"`
}

// ActiveSpan returns the first and last block with positive quantity,
// or ok=false for an empty entry.
func (e BlockEntry) ActiveSpan() (first, last int, ok bool) {
	first, last = -1, -1
	for b, q := range e.Pairs {
		if q > 0 {
			if first == -1 {
				first = b
			}
			last = b
		}
	}
	return first, last, first != -1
}

// BlockAggregate totals one time block across all entries of a day.
type BlockAggregate struct {
	Block     int     `yaml:"block"`
	Pairs     int     `yaml:"pairs"`
	Headcount float64 `yaml:"headcount"`
}

// DayResult is the daily scheduler's output for one day.
type DayResult struct {
	Day            string           `yaml:"day"`
	Status         string           `yaml:"status"`
	Pairs          int              `yaml:"pairs"`
	Tardiness      int              `yaml:"tardiness"`
	ModelTardiness map[string]int   `yaml:"model_tardiness,omitempty"`
	Headcount      int              `yaml:"headcount"`
	Entries        []BlockEntry     `yaml:"entries"`
	Blocks         []BlockAggregate `yaml:"blocks"`
	Warnings       []string         `yaml:"warnings,omitempty"`
}

// AssignedRow is a BlockEntry segment attributed to one operator.
type AssignedRow struct {
	Model     string       `yaml:"model"`
	Fraction  int          `yaml:"fraction"`
	Operation string       `yaml:"operation"`
	Resource  ResourceKind `yaml:"resource"`
	Operator  string       `yaml:"operator"`
	Robot     string       `yaml:"robot,omitempty"`
	Pairs     []int        `yaml:"pairs"`
	Total     int          `yaml:"total"`
	Pending   int          `yaml:"pending"` // model's day-wide tardiness
}

// TimelineEntry is one block of one operator's day.
type TimelineEntry struct {
	Block    int    `yaml:"block"`
	Model    string `yaml:"model"`
	Fraction int    `yaml:"fraction"`
	Robot    string `yaml:"robot,omitempty"`
	Pairs    int    `yaml:"pairs"`
}

// OperatorTimeline is one worker's ordered block activity for a day.
type OperatorTimeline struct {
	Worker  string          `yaml:"worker"`
	Entries []TimelineEntry `yaml:"entries"`
}

// UnassignedTask reports a task with blocks no worker could cover.
type UnassignedTask struct {
	Model    string `yaml:"model"`
	Fraction int    `yaml:"fraction"`
	Robot    string `yaml:"robot,omitempty"`
	Blocks   []int  `yaml:"blocks"`
	Pairs    int    `yaml:"pairs"`
	Partial  bool   `yaml:"partial"`
}

// AssignmentResult is the cascade/relay output for one day.
type AssignmentResult struct {
	Day        string             `yaml:"day"`
	Rows       []AssignedRow      `yaml:"rows"`
	Timelines  []OperatorTimeline `yaml:"timelines"`
	Unassigned []UnassignedTask   `yaml:"unassigned,omitempty"`
}
