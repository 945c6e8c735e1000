// Package tech maintains the five-year technology epoch collection that
// anchors generated posts in a coherent future. Epochs are generated one
// ahead of the simulated calendar and never rewritten once stored.
package tech

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/audit"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/llm"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/logging"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/store"
)

const (
	// EpochSpan is the simulated-year width of one epoch.
	EpochSpan = 5

	// DefaultBaseYear anchors the first epoch.
	DefaultBaseYear = 2025

	// defaultRecencyWindow bounds how far back an unmatured forecast stays
	// relevant as context for a new epoch.
	defaultRecencyWindow = 10

	// leadYears generates the next epoch this many years before the
	// simulated calendar enters it.
	leadYears = 1
)

// EpochStore is the persistence surface the scheduler needs.
type EpochStore interface {
	TechEvolution(ctx context.Context) (*store.TechEvolution, string, error)
	SaveTechEvolution(ctx context.Context, evolution *store.TechEvolution, sha string) error
}

// Scheduler generates and persists tech epochs on demand.
type Scheduler struct {
	store    EpochStore
	provider llm.Provider
	logger   logging.Logger
	audit    *audit.Recorder
	baseYear int
	window   int
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithBaseYear overrides the first epoch's anchor year.
func WithBaseYear(year int) Option {
	return func(s *Scheduler) { s.baseYear = year }
}

func NewScheduler(st EpochStore, provider llm.Provider, logger logging.Logger, recorder *audit.Recorder, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    st,
		provider: provider,
		logger:   logger,
		audit:    recorder,
		baseYear: DefaultBaseYear,
		window:   defaultRecencyWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EpochYearFor returns the epoch boundary covering a simulated year.
func (s *Scheduler) EpochYearFor(simYear int) int {
	if simYear < s.baseYear {
		return s.baseYear
	}
	return simYear - (simYear-s.baseYear)%EpochSpan
}

// Ensure guarantees that epochs exist through the one the simulated year is
// about to enter, generating missing ones. Generation failures degrade to
// the last known good collection; the only hard failure is having no epoch
// at all that covers the simulated year.
func (s *Scheduler) Ensure(ctx context.Context, simYear int) (*store.TechEvolution, error) {
	evolution, sha, err := s.store.TechEvolution(ctx)
	if err != nil {
		return nil, err
	}

	generated := false
	next := s.baseYear
	if latest := evolution.LatestEpochYear(); latest >= s.baseYear {
		next = latest + EpochSpan
	}
	for next == s.baseYear || simYear >= next-leadYears {
		epoch, genErr := s.generateEpoch(ctx, evolution, next)
		if genErr != nil {
			if _, ok := evolution.Epoch(s.EpochYearFor(simYear)); ok {
				s.logger.WithField("epoch_year", next).WithError(genErr).
					Warn("Epoch generation failed, continuing with last known epochs")
				break
			}
			return nil, fmt.Errorf("generate epoch %d: %w", next, genErr)
		}
		evolution.TechTrees[strconv.Itoa(next)] = *epoch
		generated = true
		s.logger.WithField("epoch_year", next).Info("Generated tech epoch")
		next += EpochSpan
	}

	if generated {
		if err := s.store.SaveTechEvolution(ctx, evolution, sha); err != nil {
			return nil, err
		}
	}
	return evolution, nil
}

func (s *Scheduler) generateEpoch(ctx context.Context, evolution *store.TechEvolution, epochYear int) (*store.TechEpoch, error) {
	system, user := s.buildPrompt(evolution, epochYear)
	response, err := s.provider.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		MaxTokens:   3000,
		Temperature: 0.7,
	})
	if s.audit != nil {
		s.audit.Record("tech", system, user, response)
	}
	if err != nil {
		return nil, err
	}

	var epoch store.TechEpoch
	if err := json.Unmarshal([]byte(llm.StripFences(response)), &epoch); err != nil {
		return nil, fmt.Errorf("decode epoch response: %w", err)
	}
	if len(epoch.EmergingTechnologies) == 0 && len(epoch.MainstreamTechnologies) == 0 {
		return nil, fmt.Errorf("epoch response carries no technologies")
	}
	return &epoch, nil
}

// buildPrompt assembles the epoch prompt with prior-epoch continuity
// context. Mainstream entries already matured by the target year and
// recent unmatured forecasts are carried forward as seeds.
func (s *Scheduler) buildPrompt(evolution *store.TechEvolution, epochYear int) (system, user string) {
	acceleration := math.Pow(1.05, float64(epochYear-s.baseYear))

	var mature []store.MainstreamTech
	var pending []store.EmergingTech
	for _, epoch := range evolution.TechTrees {
		for _, tech := range epoch.MainstreamTechnologies {
			if int(tech.MaturityYear) <= epochYear {
				mature = append(mature, tech)
			}
		}
		for _, tech := range epoch.EmergingTechnologies {
			est := int(tech.EstimatedYear)
			if est <= epochYear && epochYear < int(tech.ExpectedMaturityYear) && est >= epochYear-s.window {
				pending = append(pending, tech)
			}
		}
	}
	sort.Slice(mature, func(i, j int) bool { return mature[i].Name < mature[j].Name })
	sort.Slice(pending, func(i, j int) bool { return pending[i].Name < pending[j].Name })

	var context strings.Builder
	if len(mature) > 0 {
		context.WriteString("Technologies already mainstream by this epoch:\n")
		for _, tech := range mature {
			fmt.Fprintf(&context, "- %s (matured %d)\n", tech.Name, int(tech.MaturityYear))
		}
	}
	if len(pending) > 0 {
		context.WriteString("Forecast technologies still maturing:\n")
		for _, tech := range pending {
			fmt.Fprintf(&context, "- %s (forecast %d, maturing %d, probability %.2f)\n",
				tech.Name, int(tech.EstimatedYear), int(tech.ExpectedMaturityYear), float64(tech.Probability))
		}
	}
	if context.Len() == 0 {
		context.WriteString("This is the first epoch; no prior technology context exists.\n")
	}

	system = "You are a technology futurist producing structured forecasts. " +
		"Respond with a single JSON object and nothing else. No markdown fences, no commentary."

	user = fmt.Sprintf(`Generate the technology landscape for the five years starting in %d.

Development accelerates over time: apply a pace factor of %.2f relative to %d when deciding how ambitious the forecasts are.

%s
Rules:
- Carry maturing forecasts forward consistently; a technology may move from emerging to mainstream but never vanishes silently.
- estimated_year must fall within %d-%d for new emerging entries.
- Every mainstream entry needs a maturity_year of %d or earlier.

Respond with this exact JSON shape:
{
  "emerging_technologies": [
    {"name": "", "probability": 0.0, "estimated_year": 0, "expected_maturity_year": 0, "innovation_type": "", "description": "", "societal_implications": "", "adoption_factors": ""}
  ],
  "mainstream_technologies": [
    {"name": "", "from_emerging": false, "maturity_year": 0, "impact_level": 0, "description": "", "adoption_status": ""}
  ],
  "epoch_themes": [
    {"theme": "", "description": "", "societal_impact": "", "global_trends": ""}
  ]
}`, epochYear, acceleration, s.baseYear, context.String(), epochYear, epochYear+EpochSpan-1, epochYear)

	return system, user
}
