// Package trust derives a 0-100 trust score from a record's provenance
// fields and generates the initial verification tasks for new records.
package trust

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// WeightTable maps tracked field paths to their weight in the trust score.
// Every tracked path counts toward the denominator whether or not the record
// carries a value for it.
type WeightTable map[string]float64

// DefaultWeights is the compiled-in weight table for student records.
// Identity fields dominate because most downstream decisions key off them.
func DefaultWeights() WeightTable {
	return WeightTable{
		"identity.firstName":     10,
		"identity.lastName":      10,
		"identity.dateOfBirth":   20,
		"identity.nationalId":    20,
		"education.school":       10,
		"family.primaryGuardian": 10,
		"health.diagnoses":       15,
		"health.medications":     15,
	}
}

// weightsFile is the YAML shape for an override file.
type weightsFile struct {
	Weights map[string]float64 `yaml:"weights"`
}

// LoadWeights reads a weight table override from a YAML file. Weights must
// be positive; a zero-weight entry should simply be removed from the table.
func LoadWeights(path string) (WeightTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weight table %s: %w", path, err)
	}
	var file weightsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse weight table %s: %w", path, err)
	}
	if len(file.Weights) == 0 {
		return nil, fmt.Errorf("weight table %s: no weights defined", path)
	}
	for fieldPath, weight := range file.Weights {
		if weight <= 0 {
			return nil, fmt.Errorf("weight table %s: non-positive weight %v for %q", path, weight, fieldPath)
		}
	}
	return WeightTable(file.Weights), nil
}

// Paths returns the tracked field paths in a stable order.
func (w WeightTable) Paths() []string {
	paths := make([]string, 0, len(w))
	for p := range w {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Total is the score denominator.
func (w WeightTable) Total() float64 {
	var total float64
	for _, weight := range w {
		total += weight
	}
	return total
}
