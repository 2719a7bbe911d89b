// Package report renders a planning result as terminal tables: the
// weekly model-by-day grid, per-day summaries, and the staffing view
// with its unassigned gaps.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/calzaplan/calzaplan/internal/model"
	"github.com/calzaplan/calzaplan/internal/pipeline"
)

// Weekly renders the weekly plan as a model-by-day pair grid plus the
// solver summary line.
func Weekly(result *pipeline.Result) string {
	var sb strings.Builder
	sb.WriteString(color.CyanString("Weekly plan") + fmt.Sprintf("  run %s\n", result.RunID))

	status := color.GreenString(result.Summary.Status)
	if result.Summary.Status != "OPTIMAL" {
		status = color.YellowString(result.Summary.Status)
	}
	fmt.Fprintf(&sb, "  status %s  objective %.0f  solved in %s\n\n",
		status, result.Summary.Objective, result.Summary.WallTime.Round(time.Millisecond))

	days := dayNames(result)
	modelIDs := modelNames(result)

	fmt.Fprintf(&sb, "  %-12s", "model")
	for _, d := range days {
		fmt.Fprintf(&sb, "%8s", d)
	}
	fmt.Fprintf(&sb, "%10s%10s\n", "total", "tardy")

	for _, id := range modelIDs {
		fmt.Fprintf(&sb, "  %-12s", id)
		total := 0
		for _, d := range days {
			pairs := result.Weekly.Pairs(id, d)
			total += pairs
			if pairs == 0 {
				fmt.Fprintf(&sb, "%8s", "·")
			} else {
				fmt.Fprintf(&sb, "%8d", pairs)
			}
		}
		tardy := modelTardiness(result, id)
		cell := fmt.Sprintf("%d", tardy)
		if tardy > 0 {
			cell = color.RedString(cell)
		}
		fmt.Fprintf(&sb, "%10d%10s\n", total, cell)
	}

	fmt.Fprintf(&sb, "  %-12s", "total")
	for _, d := range days {
		fmt.Fprintf(&sb, "%8d", result.Weekly.DayPairs(d))
	}
	sb.WriteString("\n")

	if len(result.Warnings) > 0 {
		sb.WriteString("\n" + color.YellowString("Warnings") + "\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&sb, "  - %s\n", w)
		}
	}
	return sb.String()
}

// Days renders per-day summaries: pairs, tardiness and block totals.
func Days(result *pipeline.Result) string {
	var sb strings.Builder
	sb.WriteString(color.CyanString("Daily schedules") + "\n")

	for _, day := range result.Days {
		dr := day.Schedule
		status := color.GreenString(dr.Status)
		if dr.Status != "OK" {
			status = color.YellowString(dr.Status)
		}
		fmt.Fprintf(&sb, "  %-4s %s  %5d pairs", dr.Day, status, dr.Pairs)
		if dr.Tardiness > 0 {
			fmt.Fprintf(&sb, "  %s", color.RedString("%d short", dr.Tardiness))
		}
		sb.WriteString("\n")
		for _, w := range dr.Warnings {
			fmt.Fprintf(&sb, "       %s\n", color.YellowString(w))
		}
	}
	return sb.String()
}

// Assignments renders the staffing view for one day: operator rows and
// any blocks nobody could cover.
func Assignments(plan pipeline.DayPlan) string {
	var sb strings.Builder
	ar := plan.Assignment
	fmt.Fprintf(&sb, "%s %s\n", color.CyanString("Staffing"), ar.Day)

	for _, row := range ar.Rows {
		operator := row.Operator
		if operator == model.UnassignedOperator {
			operator = color.RedString(operator)
		}
		fmt.Fprintf(&sb, "  %-12s f%-3d %-10s %-16s %4d pairs", row.Model, row.Fraction, string(row.Resource), operator, row.Total)
		if row.Robot != "" {
			fmt.Fprintf(&sb, "  %s", row.Robot)
		}
		if row.Pending > 0 {
			fmt.Fprintf(&sb, "  %s", color.YellowString("%d pending", row.Pending))
		}
		sb.WriteString("\n")
	}

	if len(ar.Unassigned) > 0 {
		sb.WriteString(color.RedString("  Uncovered blocks") + "\n")
		for _, u := range ar.Unassigned {
			fmt.Fprintf(&sb, "    %s f%d blocks %v (%d pairs)\n", u.Model, u.Fraction, u.Blocks, u.Pairs)
		}
	}
	return sb.String()
}

func dayNames(result *pipeline.Result) []string {
	var days []string
	for _, d := range result.Summary.Days {
		days = append(days, d.Day)
	}
	return days
}

func modelNames(result *pipeline.Result) []string {
	var ids []string
	for _, m := range result.Summary.Models {
		ids = append(ids, m.Model)
	}
	sort.Strings(ids)
	return ids
}

func modelTardiness(result *pipeline.Result, id string) int {
	for _, m := range result.Summary.Models {
		if m.Model == id {
			return m.Tardiness
		}
	}
	return 0
}
