package llm

import "strings"

// TaskProfile describes one routing request: the task type declared on the
// node, the assembled prompt/context text, and the context size (prior
// turns or input fields carried into the call).
type TaskProfile struct {
	TaskType    string
	Prompt      string
	ContextSize int
}

// ComplexityScorer combines prompt length, keyword matches, and context
// size into a single ordinal tier via configured weights.
type ComplexityScorer struct {
	cfg ScoringConfig
}

// NewComplexityScorer creates a scorer from the given configuration.
func NewComplexityScorer(cfg ScoringConfig) *ComplexityScorer {
	if cfg.Bands.Short <= 0 {
		cfg.Bands = LengthBands{Short: 200, Medium: 800, Long: 1600}
	}
	if cfg.Weights.Length == 0 && cfg.Weights.Keyword == 0 && cfg.Weights.Context == 0 {
		cfg.Weights = SignalWeights{Length: 0.5, Keyword: 0.3, Context: 0.2}
	}
	if cfg.ContextThreshold <= 0 {
		cfg.ContextThreshold = 5
	}
	return &ComplexityScorer{cfg: cfg}
}

// Score resolves the complexity tier for a profile.
func (s *ComplexityScorer) Score(profile TaskProfile) Tier {
	w := s.cfg.Weights
	total := w.Length + w.Keyword + w.Context
	if total <= 0 {
		return TierLow
	}

	weighted := (w.Length*float64(s.lengthSignal(profile.Prompt)) +
		w.Keyword*float64(s.keywordSignal(profile)) +
		w.Context*float64(s.contextSignal(profile.ContextSize))) / total

	switch {
	case weighted < 0.5:
		return TierLow
	case weighted < 1.5:
		return TierMedium
	case weighted < 2.5:
		return TierHigh
	default:
		return TierCritical
	}
}

// lengthSignal bands the prompt length: short/medium/long/very-long.
func (s *ComplexityScorer) lengthSignal(prompt string) int {
	n := len(prompt)
	switch {
	case n <= s.cfg.Bands.Short:
		return 0
	case n <= s.cfg.Bands.Medium:
		return 1
	case n <= s.cfg.Bands.Long:
		return 2
	default:
		return 3
	}
}

// keywordSignal counts matches against the task type's keyword set; each
// match nudges the tier up, saturating at three.
func (s *ComplexityScorer) keywordSignal(profile TaskProfile) int {
	keywords := s.cfg.Keywords[profile.TaskType]
	if len(keywords) == 0 {
		keywords = s.cfg.Keywords["default"]
	}
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(profile.Prompt)
	matches := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			matches++
		}
	}
	if matches > 3 {
		matches = 3
	}
	return matches
}

// contextSignal escalates with the number of prior turns or input fields.
func (s *ComplexityScorer) contextSignal(size int) int {
	thr := s.cfg.ContextThreshold
	switch {
	case size <= 0:
		return 0
	case size <= thr:
		return 1
	case size <= 2*thr:
		return 2
	default:
		return 3
	}
}
