package report

import (
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/calzaplan/calzaplan/internal/model"
	"github.com/calzaplan/calzaplan/internal/pipeline"
)

func testResult() *pipeline.Result {
	return &pipeline.Result{
		RunID: "run-1",
		Weekly: &model.WeeklySchedule{Rows: []model.WeeklyRow{
			{Day: "Lun", Model: "M1", Pairs: 300},
			{Day: "Mar", Model: "M1", Pairs: 200},
			{Day: "Lun", Model: "M2", Pairs: 150},
		}},
		Summary: &model.WeeklySummary{
			Status:   "OPTIMAL",
			WallTime: 120 * time.Millisecond,
			Days: []model.DaySummary{
				{Day: "Lun", Pairs: 450},
				{Day: "Mar", Pairs: 200},
			},
			Models: []model.ModelSummary{
				{Model: "M1", Volume: 500, Produced: 500},
				{Model: "M2", Volume: 180, Produced: 150, Tardiness: 30},
			},
		},
		Days: []pipeline.DayPlan{
			{
				Schedule: &model.DayResult{Day: "Lun", Status: "OK", Pairs: 450},
				Assignment: &model.AssignmentResult{
					Day: "Lun",
					Rows: []model.AssignedRow{
						{Model: "M1", Fraction: 1, Resource: model.ResourceMesa, Operator: "W1", Total: 300},
						{Model: "M2", Fraction: 1, Resource: model.ResourcePlana, Operator: model.UnassignedOperator, Total: 150, Pending: 30},
					},
					Unassigned: []model.UnassignedTask{
						{Model: "M2", Fraction: 1, Blocks: []int{0, 1}, Pairs: 150},
					},
				},
			},
		},
		Warnings: []string{"constraint c9 targets unknown model M9"},
	}
}

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestWeeklyGrid(t *testing.T) {
	out := Weekly(testResult())

	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "OPTIMAL")
	assert.Contains(t, out, "M1")
	assert.Contains(t, out, "300")
	assert.Contains(t, out, "Lun")
	assert.Contains(t, out, "constraint c9")
}

func TestDaysSummary(t *testing.T) {
	out := Days(testResult())

	assert.Contains(t, out, "Lun")
	assert.Contains(t, out, "450 pairs")
}

func TestAssignmentsShowsGaps(t *testing.T) {
	out := Assignments(testResult().Days[0])

	assert.Contains(t, out, "W1")
	assert.Contains(t, out, model.UnassignedOperator)
	assert.Contains(t, out, "Uncovered blocks")
	assert.Contains(t, out, "30 pending")
}
