package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt decodes from a JSON number or a numeric string. Generated JSON is
// inconsistent about quoting years and scores.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("cannot parse %q as integer", s)
	}
	*f = FlexInt(int(parsed))
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(f))
}

// FlexFloat decodes from a JSON number or a numeric string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("cannot parse %q as number", s)
	}
	*f = FlexFloat(parsed)
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

// TweetRecord is a single timeline entry. Records are immutable once
// published; TweetCount is the monotonic primary key for all scheduling.
type TweetRecord struct {
	ID            string  `json:"id,omitempty"`
	Content       string  `json:"content"`
	TweetCount    int     `json:"tweet_count"`
	SimulatedDate string  `json:"simulated_date"`
	Age           float64 `json:"age"`
	Timestamp     string  `json:"timestamp,omitempty"`
}

// DigestTrack is one narrative track of a digest.
type DigestTrack struct {
	HistoricalSummary []string `json:"historical_summary"`
	Projected         []string `json:"projected"`
}

// DigestMetadata records when a digest was produced on the simulated
// timeline. PostCount is always <= the count that triggered regeneration.
type DigestMetadata struct {
	PostCount     int    `json:"post_count"`
	SimulatedDate string `json:"simulated_date"`
	Timestamp     string `json:"timestamp"`
}

// Digest is a periodic narrative summary used as generation context for
// subsequent posts. History is append-only.
type Digest struct {
	Age          FlexFloat      `json:"age"`
	Professional DigestTrack    `json:"professional"`
	Personal     DigestTrack    `json:"personal"`
	Family       DigestTrack    `json:"family"`
	Social       DigestTrack    `json:"social"`
	Reflections  DigestTrack    `json:"reflections"`
	Foundation   DigestTrack    `json:"foundation"`
	Metadata     DigestMetadata `json:"metadata"`
}

// EmergingTech is a forecast technology that has not yet matured.
type EmergingTech struct {
	Name                 string    `json:"name"`
	Probability          FlexFloat `json:"probability"`
	EstimatedYear        FlexInt   `json:"estimated_year"`
	ExpectedMaturityYear FlexInt   `json:"expected_maturity_year"`
	InnovationType       string    `json:"innovation_type,omitempty"`
	Dependencies         []string  `json:"dependencies,omitempty"`
	ImpactAreas          []string  `json:"impact_areas,omitempty"`
	Description          string    `json:"description,omitempty"`
	SocietalImplications string    `json:"societal_implications,omitempty"`
	AdoptionFactors      string    `json:"adoption_factors,omitempty"`
}

// MainstreamTech is a technology that has reached wide adoption.
type MainstreamTech struct {
	Name                  string  `json:"name"`
	FromEmerging          bool    `json:"from_emerging,omitempty"`
	OriginalEmergenceYear FlexInt `json:"original_emergence_year,omitempty"`
	MaturityYear          FlexInt `json:"maturity_year"`
	ImpactLevel           FlexInt `json:"impact_level,omitempty"`
	Description           string  `json:"description,omitempty"`
	AdoptionStatus        string  `json:"adoption_status,omitempty"`
}

// EpochTheme describes a cross-cutting theme of a tech epoch.
type EpochTheme struct {
	Theme               string   `json:"theme"`
	Description         string   `json:"description,omitempty"`
	RelatedTechnologies []string `json:"related_technologies,omitempty"`
	SocietalImpact      string   `json:"societal_impact,omitempty"`
	GlobalTrends        string   `json:"global_trends,omitempty"`
}

// TechEpoch is a 5-simulated-year block of forecast technology.
type TechEpoch struct {
	EmergingTechnologies   []EmergingTech   `json:"emerging_technologies"`
	MainstreamTechnologies []MainstreamTech `json:"mainstream_technologies"`
	EpochThemes            []EpochTheme     `json:"epoch_themes,omitempty"`
}

// TechEvolution is the persisted epoch collection, keyed by 5-year-aligned
// calendar year. Epochs are never mutated after creation; only LastUpdated
// moves.
type TechEvolution struct {
	TechTrees   map[string]TechEpoch `json:"tech_trees"`
	LastUpdated string               `json:"last_updated"`
}

// Epoch returns the epoch for a year, if present.
func (t *TechEvolution) Epoch(year int) (TechEpoch, bool) {
	epoch, ok := t.TechTrees[strconv.Itoa(year)]
	return epoch, ok
}

// LatestEpochYear returns the highest epoch year present, or 0 when the
// collection is empty.
func (t *TechEvolution) LatestEpochYear() int {
	latest := 0
	for key := range t.TechTrees {
		year, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		if year > latest {
			latest = year
		}
	}
	return latest
}
