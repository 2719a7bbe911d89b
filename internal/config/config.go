// Package config loads and validates the planning directory's YAML
// input files and joins the weekly order against the model catalog.
// All validation happens here, before any optimization runs: a bad
// input fails fast with the table name in the error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/calzaplan/calzaplan/internal/model"
	"github.com/calzaplan/calzaplan/internal/yamlio"
)

// Fixed input file names inside the planning directory.
const (
	OrderFile       = "orden.yaml"
	CatalogFile     = "catalogo.yaml"
	CalendarFile    = "calendario.yaml"
	CapacitiesFile  = "capacidades.yaml"
	ConstraintsFile = "restricciones.yaml"
	ProgressFile    = "avance.yaml"
	WorkersFile     = "operarias.yaml"
	ResultFile      = "resultado.yaml"
)

// ValidationError is a fatal configuration problem, carrying the table
// (file) it was found in.
type ValidationError struct {
	Table string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Table, e.Msg)
}

func invalid(table, format string, args ...any) error {
	return &ValidationError{Table: table, Msg: fmt.Sprintf(format, args...)}
}

// Inputs is the validated, joined input set for one planning run.
type Inputs struct {
	Orders         []model.OrderLine
	Models         []model.Model // order joined with catalog operations
	Days           []model.Day
	ReoptimizeFrom int
	Capacities     map[model.ResourceKind]int
	Constraints    []model.Constraint
	Progress       model.Progress
	Workers        []model.Worker
}

type orderFile struct {
	Lines []model.OrderLine `yaml:"lines"`
}

// catalogEntry is one model's catalog record before the order join.
type catalogEntry struct {
	Model      string            `yaml:"model"`
	Factory    string            `yaml:"factory,omitempty"`
	Color      string            `yaml:"color,omitempty"`
	MinLot     int               `yaml:"min_lot,omitempty"`
	Operations []model.Operation `yaml:"operations"`
}

type catalogFile struct {
	Models []catalogEntry `yaml:"models"`
}

type calendarFile struct {
	Days           []model.Day `yaml:"days"`
	ReoptimizeFrom int         `yaml:"reoptimize_from_day,omitempty"`
}

type capacitiesFile struct {
	Capacities map[string]int `yaml:"capacities"`
}

type constraintsFile struct {
	Constraints []model.Constraint `yaml:"constraints"`
}

type progressFile struct {
	Progress model.Progress `yaml:"progress"`
}

type workersFile struct {
	Workers []model.Worker `yaml:"workers"`
}

// Load reads every input table from dir, validates it, and joins the
// order against the catalog. Constraint, progress and worker files are
// optional; the rest are required.
func Load(dir string) (*Inputs, error) {
	in := &Inputs{Progress: model.Progress{}}

	var orders orderFile
	if err := load(dir, OrderFile, &orders, true); err != nil {
		return nil, err
	}
	in.Orders = orders.Lines

	var catalog catalogFile
	if err := load(dir, CatalogFile, &catalog, true); err != nil {
		return nil, err
	}

	var calendar calendarFile
	if err := load(dir, CalendarFile, &calendar, true); err != nil {
		return nil, err
	}
	in.Days = calendar.Days
	in.ReoptimizeFrom = calendar.ReoptimizeFrom

	var caps capacitiesFile
	if err := load(dir, CapacitiesFile, &caps, true); err != nil {
		return nil, err
	}

	var cons constraintsFile
	if err := load(dir, ConstraintsFile, &cons, false); err != nil {
		return nil, err
	}
	in.Constraints = cons.Constraints

	var progress progressFile
	if err := load(dir, ProgressFile, &progress, false); err != nil {
		return nil, err
	}
	if progress.Progress != nil {
		in.Progress = progress.Progress
	}

	var workers workersFile
	if err := load(dir, WorkersFile, &workers, false); err != nil {
		return nil, err
	}
	in.Workers = workers.Workers

	capacities, err := parseCapacities(caps.Capacities)
	if err != nil {
		return nil, err
	}
	in.Capacities = capacities

	if err := in.validate(catalog.Models); err != nil {
		return nil, err
	}
	for i := range in.Workers {
		if in.Workers[i].Efficiency <= 0 {
			in.Workers[i].Efficiency = 1.0
		}
	}
	in.Models = joinCatalog(in.Orders, catalog.Models)
	return in, nil
}

func load(dir, name string, out any, required bool) error {
	err := yamlio.Load(filepath.Join(dir, name), out)
	if err == nil {
		return nil
	}
	if !required && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return invalid(name, "required input file is missing")
	}
	return err
}

func parseCapacities(raw map[string]int) (map[model.ResourceKind]int, error) {
	out := make(map[model.ResourceKind]int, len(raw))
	for name, count := range raw {
		kind, err := model.ParseResourceKind(name)
		if err != nil {
			return nil, invalid(CapacitiesFile, "%v", err)
		}
		if count < 0 {
			return nil, invalid(CapacitiesFile, "negative capacity %d for %s", count, name)
		}
		out[kind] = count
	}
	return out, nil
}

func (in *Inputs) validate(catalog []catalogEntry) error {
	if len(in.Orders) == 0 {
		return invalid(OrderFile, "order has no lines")
	}
	for _, line := range in.Orders {
		if line.Model == "" {
			return invalid(OrderFile, "order line without a model id")
		}
		if line.Volume <= 0 {
			return invalid(OrderFile, "model %s has non-positive volume %d", line.Model, line.Volume)
		}
	}

	known := make(map[string]bool, len(catalog))
	for _, entry := range catalog {
		if entry.Model == "" {
			return invalid(CatalogFile, "catalog entry without a model id")
		}
		if known[entry.Model] {
			return invalid(CatalogFile, "duplicate catalog entry for model %s", entry.Model)
		}
		known[entry.Model] = true
		if err := validateOperations(entry); err != nil {
			return err
		}
	}
	for _, line := range in.Orders {
		if !known[line.Model] {
			return invalid(CatalogFile, "ordered model %s has no catalog entry", line.Model)
		}
	}

	if len(in.Days) == 0 {
		return invalid(CalendarFile, "calendar has no days")
	}
	seenDays := make(map[string]bool, len(in.Days))
	for _, d := range in.Days {
		if d.Name == "" {
			return invalid(CalendarFile, "day without a name")
		}
		if seenDays[d.Name] {
			return invalid(CalendarFile, "duplicate day %s", d.Name)
		}
		seenDays[d.Name] = true
		if d.RegularMinutes <= 0 {
			return invalid(CalendarFile, "day %s has non-positive shift length", d.Name)
		}
		if d.RegularHeadcount < 0 || d.OvertimeHeadcount < 0 {
			return invalid(CalendarFile, "day %s has negative headcount", d.Name)
		}
	}
	if in.ReoptimizeFrom < 0 || in.ReoptimizeFrom > len(in.Days) {
		return invalid(CalendarFile, "reoptimize_from_day %d is outside the calendar", in.ReoptimizeFrom)
	}

	if len(in.Capacities) == 0 {
		return invalid(CapacitiesFile, "no resource capacities declared")
	}

	seenWorkers := make(map[string]bool, len(in.Workers))
	for _, w := range in.Workers {
		if w.ID == "" {
			return invalid(WorkersFile, "worker without an id")
		}
		if seenWorkers[w.ID] {
			return invalid(WorkersFile, "duplicate worker %s", w.ID)
		}
		seenWorkers[w.ID] = true
		for _, kind := range w.Resources {
			if _, err := model.ParseResourceKind(string(kind)); err != nil {
				return invalid(WorkersFile, "worker %s: %v", w.ID, err)
			}
		}
		for _, day := range w.Days {
			if !seenDays[day] {
				return invalid(WorkersFile, "worker %s lists unknown day %s", w.ID, day)
			}
		}
	}

	return nil
}

func validateOperations(entry catalogEntry) error {
	if len(entry.Operations) == 0 {
		return invalid(CatalogFile, "model %s has no operations", entry.Model)
	}
	seen := make(map[int]bool, len(entry.Operations))
	for _, op := range entry.Operations {
		if op.Fraction <= 0 {
			return invalid(CatalogFile, "model %s has an operation without a fraction index", entry.Model)
		}
		if seen[op.Fraction] {
			return invalid(CatalogFile, "model %s repeats fraction %d", entry.Model, op.Fraction)
		}
		seen[op.Fraction] = true
		if _, err := model.ParseResourceKind(string(op.Resource)); err != nil {
			return invalid(CatalogFile, "model %s fraction %d: %v", entry.Model, op.Fraction, err)
		}
		if op.Resource != model.ResourceMaquila && op.RatePairsHr <= 0 {
			return invalid(CatalogFile, "model %s fraction %d has no rate", entry.Model, op.Fraction)
		}
		if op.Resource == model.ResourceRobot && len(op.Robots) == 0 {
			return invalid(CatalogFile, "model %s fraction %d needs a robot but lists none", entry.Model, op.Fraction)
		}
	}
	return nil
}

// joinCatalog merges order lines with catalog entries into solver-ready
// models. Repeated lines for one model sum their volumes; the first
// line's factory and color win when the catalog leaves them blank.
func joinCatalog(orders []model.OrderLine, catalog []catalogEntry) []model.Model {
	byID := make(map[string]catalogEntry, len(catalog))
	for _, entry := range catalog {
		byID[entry.Model] = entry
	}

	joined := make(map[string]*model.Model)
	var order []string
	for _, line := range orders {
		entry := byID[line.Model]
		m, ok := joined[line.Model]
		if !ok {
			m = &model.Model{
				ID:         line.Model,
				Factory:    entry.Factory,
				Color:      entry.Color,
				MinLot:     entry.MinLot,
				Operations: entry.Operations,
			}
			if line.Factory != "" {
				m.Factory = line.Factory
			}
			if line.Color != "" {
				m.Color = line.Color
			}
			joined[line.Model] = m
			order = append(order, line.Model)
		}
		m.Volume += line.Volume
	}

	sort.Strings(order)
	models := make([]model.Model, 0, len(order))
	for _, id := range order {
		models = append(models, *joined[id])
	}
	return models
}
