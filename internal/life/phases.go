// Package life carries the static life-phase reference data keyed by age
// bracket. It is read-only input to generation prompts; the engine never
// mutates it.
package life

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed phases.yaml
var phasesYAML []byte

// Phase describes narrative guidance for one age bracket.
type Phase struct {
	Bracket      string  `yaml:"bracket" json:"bracket"`
	MinAge       float64 `yaml:"min_age" json:"min_age"`
	MaxAge       float64 `yaml:"max_age" json:"max_age"` // 0 means open-ended
	Label        string  `yaml:"label" json:"label"`
	Professional string  `yaml:"professional" json:"professional"`
	Personal     string  `yaml:"personal" json:"personal"`
	Family       string  `yaml:"family" json:"family"`
	Social       string  `yaml:"social" json:"social"`
	Reflections  string  `yaml:"reflections" json:"reflections"`
	Foundation   string  `yaml:"foundation" json:"foundation"`
}

type phaseFile struct {
	Phases []Phase `yaml:"phases"`
}

// Load decodes the embedded phase table.
func Load() ([]Phase, error) {
	var parsed phaseFile
	if err := yaml.Unmarshal(phasesYAML, &parsed); err != nil {
		return nil, fmt.Errorf("decode life phases: %w", err)
	}
	if len(parsed.Phases) == 0 {
		return nil, fmt.Errorf("life phase table is empty")
	}
	return parsed.Phases, nil
}

// PhaseFor returns the phase covering the given age. Ages below the first
// bracket clamp to it; the last bracket is open-ended.
func PhaseFor(phases []Phase, age float64) Phase {
	for _, phase := range phases {
		if phase.MaxAge == 0 || age < phase.MaxAge {
			return phase
		}
	}
	return phases[len(phases)-1]
}

// Describe renders a phase as prompt context.
func (p Phase) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", p.Label, p.Bracket)
	fmt.Fprintf(&b, "- Professional: %s\n", p.Professional)
	fmt.Fprintf(&b, "- Personal: %s\n", p.Personal)
	fmt.Fprintf(&b, "- Family: %s\n", p.Family)
	fmt.Fprintf(&b, "- Social: %s\n", p.Social)
	fmt.Fprintf(&b, "- Reflections: %s\n", p.Reflections)
	fmt.Fprintf(&b, "- Foundation: %s\n", p.Foundation)
	return b.String()
}
