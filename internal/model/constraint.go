package model

import "fmt"

// ConstraintKind enumerates the business-rule record types.
type ConstraintKind string

const (
	KindPriority      ConstraintKind = "PRIORIDAD"
	KindMaquila       ConstraintKind = "MAQUILA"
	KindMaterialDelay ConstraintKind = "RETRASO_MATERIAL"
	KindDay           ConstraintKind = "DIA"
	KindSequence      ConstraintKind = "SECUENCIA"
	KindVolume        ConstraintKind = "VOLUMEN"
)

// ConstraintKinds lists every kind in stable order.
var ConstraintKinds = []ConstraintKind{
	KindPriority, KindMaquila, KindMaterialDelay, KindDay, KindSequence, KindVolume,
}

func ParseConstraintKind(s string) (ConstraintKind, error) {
	for _, k := range ConstraintKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown constraint kind %q", s)
}

// ConstraintParams is the kind-specific parameter bag. Field names keep
// the factory's Spanish record keys.
type ConstraintParams struct {
	// PRIORIDAD: discrete level 1..3.
	Level int `yaml:"nivel,omitempty"`
	// MAQUILA: pairs fulfilled off-site.
	Pairs int `yaml:"pares,omitempty"`
	// RETRASO_MATERIAL: first eligible day, optional first-day hour "HH:MM".
	AvailableFrom string `yaml:"disponible_desde,omitempty"`
	Hour          string `yaml:"hora,omitempty"`
	// DIA: explicit allow-list or exclude-list of day names.
	AllowDays   []string `yaml:"dias_permitidos,omitempty"`
	ExcludeDays []string `yaml:"dias_excluidos,omitempty"`
	// SECUENCIA: ordered model pair.
	Before string `yaml:"antes,omitempty"`
	After  string `yaml:"despues,omitempty"`
	// VOLUMEN: replacement target volume.
	Volume int `yaml:"volumen,omitempty"`
}

// Constraint is one raw business-rule record.
type Constraint struct {
	ID     string           `yaml:"id"`
	Kind   ConstraintKind   `yaml:"kind"`
	Model  string           `yaml:"model"` // target model id or "*"
	Active bool             `yaml:"active"`
	Params ConstraintParams `yaml:"params"`
}

// Progress maps model id → day name → pairs already completed.
type Progress map[string]map[string]int
