// Package model defines the data structures shared by the scheduling pipeline:
// production models and operations, the day calendar and time-block grid,
// constraint records, the worker roster, tuning parameters and output records.
package model

import (
	"fmt"
	"sort"
)

// ResourceKind identifies the capacity pool an operation draws from.
type ResourceKind string

const (
	ResourceMesa    ResourceKind = "MESA"    // hand-work table
	ResourceRobot   ResourceKind = "ROBOT"   // stitching robot
	ResourcePlana   ResourceKind = "PLANA"   // flat sewing machine
	ResourcePoste   ResourceKind = "POSTE"   // post machine
	ResourceMaquila ResourceKind = "MAQUILA" // subcontracted, no internal capacity
)

// ResourceKinds lists every kind in stable order.
var ResourceKinds = []ResourceKind{
	ResourceMesa, ResourceRobot, ResourcePlana, ResourcePoste, ResourceMaquila,
}

func ParseResourceKind(s string) (ResourceKind, error) {
	for _, k := range ResourceKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Operation is one stitching step (a "fraction") of a model's sequence.
type Operation struct {
	Fraction    int          `yaml:"fraction"`
	Description string       `yaml:"description"`
	Resource    ResourceKind `yaml:"resource"`
	Robots      []string     `yaml:"robots,omitempty"` // eligible physical robots
	RatePairsHr float64      `yaml:"rate"`             // pairs per hour
	Headcount   int          `yaml:"headcount,omitempty"`
}

// SecondsPerPair derives the per-pair work content from the hourly rate.
func (o Operation) SecondsPerPair() float64 {
	if o.RatePairsHr <= 0 {
		return 0
	}
	return 3600.0 / o.RatePairsHr
}

// Persons returns the crew size one stream of this operation occupies.
func (o Operation) Persons() int {
	if o.Headcount < 2 {
		return 1
	}
	return o.Headcount
}

// Model is one SKU in the weekly order, joined with its catalog operations.
type Model struct {
	ID         string
	Factory    string
	Color      string
	Volume     int // weekly target pairs
	MinLot     int // optional per-model minimum daily lot; 0 means use global
	Operations []Operation
}

// TotalSecondsPerPair sums work content over all operations.
func (m Model) TotalSecondsPerPair() float64 {
	var total float64
	for _, op := range m.Operations {
		total += op.SecondsPerPair()
	}
	return total
}

// BottleneckRate returns the slowest operation's rate in pairs/hour,
// or 0 when the model has no rated operations.
func (m Model) BottleneckRate() float64 {
	var slowest float64
	for _, op := range m.Operations {
		if op.RatePairsHr <= 0 {
			continue
		}
		if slowest == 0 || op.RatePairsHr < slowest {
			slowest = op.RatePairsHr
		}
	}
	return slowest
}

// SortedOperations returns the operations ordered by fraction index.
func (m Model) SortedOperations() []Operation {
	ops := make([]Operation, len(m.Operations))
	copy(ops, m.Operations)
	sort.Slice(ops, func(i, j int) bool { return ops[i].Fraction < ops[j].Fraction })
	return ops
}

// OrderLine is one row of the weekly order before catalog matching.
type OrderLine struct {
	Model   string `yaml:"model"`
	Color   string `yaml:"color,omitempty"`
	Volume  int    `yaml:"volume"`
	Factory string `yaml:"factory,omitempty"`
}

// Worker is one roster member with skill and availability tags.
type Worker struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Resources  []ResourceKind `yaml:"resources"`
	Robots     []string       `yaml:"robots,omitempty"`
	Efficiency float64        `yaml:"efficiency"`
	Days       []string       `yaml:"days,omitempty"` // empty means every day
}

// CanUse reports whether the worker is enabled for the resource kind.
func (w Worker) CanUse(kind ResourceKind) bool {
	for _, k := range w.Resources {
		if k == kind {
			return true
		}
	}
	return false
}

// CanDrive reports whether the worker is enabled for the named robot.
func (w Worker) CanDrive(robot string) bool {
	for _, r := range w.Robots {
		if r == robot {
			return true
		}
	}
	return false
}

// AvailableOn reports availability for a day name; an empty Days list
// means the worker is available all week.
func (w Worker) AvailableOn(day string) bool {
	if len(w.Days) == 0 {
		return true
	}
	for _, d := range w.Days {
		if d == day {
			return true
		}
	}
	return false
}

// UnassignedOperator is the sentinel operator name for blocks no worker
// could be found for.
const UnassignedOperator = "SIN ASIGNAR"
