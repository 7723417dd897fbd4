package scoring

// Level is the qualitative confidence band for a score.
type Level string

const (
	LevelVeryHigh Level = "VERY_HIGH"
	LevelHigh     Level = "HIGH"
	LevelModerate Level = "MODERATE"
	LevelLow      Level = "LOW"
	LevelVeryLow  Level = "VERY_LOW"
)

// LevelFor maps a clamped score to its qualitative band.
func LevelFor(score float64) Level {
	switch {
	case score >= 0.90:
		return LevelVeryHigh
	case score >= 0.80:
		return LevelHigh
	case score >= 0.70:
		return LevelModerate
	case score >= 0.50:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// RiskFlag marks a structural concern attached to a section or document.
type RiskFlag string

const (
	// FlagLowEvidenceSupport marks a resolved Major or Critical exchange
	// whose response supplied no evidence.
	FlagLowEvidenceSupport RiskFlag = "LOW_EVIDENCE_SUPPORT"

	// FlagHighCritiqueDensity marks more than two unresolved Major
	// critiques against one target.
	FlagHighCritiqueDensity RiskFlag = "HIGH_CRITIQUE_DENSITY"

	// FlagUnresolvedCritical marks one or more Critical critiques left
	// without a response at finalize time.
	FlagUnresolvedCritical RiskFlag = "UNRESOLVED_CRITICAL_CRITIQUE"

	// FlagComplianceConcerns marks unresolved compliance-lane findings of
	// Major or Critical severity.
	FlagComplianceConcerns RiskFlag = "COMPLIANCE_CONCERNS"

	// FlagMissingRequiredContent is attached by the orchestration layer
	// when required document content is absent.
	FlagMissingRequiredContent RiskFlag = "MISSING_REQUIRED_CONTENT"

	// FlagScopeMismatch is attached by the orchestration layer when the
	// document drifts from the opportunity scope.
	FlagScopeMismatch RiskFlag = "SCOPE_MISMATCH"
)

// Adjustment is one named score delta in a section's append-only log.
type Adjustment struct {
	Reason string  `json:"reason"`
	Delta  float64 `json:"delta"`
}

// SectionConfidence is the scored state of one document section.
type SectionConfidence struct {
	Section       string  `json:"section"`
	BaseScore     float64 `json:"base_score"`
	AdjustedScore float64 `json:"adjusted_score"`
	Level         Level   `json:"level"`

	TotalCritiques      int `json:"total_critiques"`
	UnresolvedCritiques int `json:"unresolved_critiques"`
	CriticalCritiques   int `json:"critical_critiques"`
	MajorCritiques      int `json:"major_critiques"`
	UnresolvedCritical  int `json:"unresolved_critical"`
	UnresolvedMajor     int `json:"unresolved_major"`

	Adjustments []Adjustment `json:"adjustments,omitempty"`
	RiskFlags   []RiskFlag   `json:"risk_flags,omitempty"`

	// Context passed through from the caller, not computed here.
	WordCount     int `json:"word_count,omitempty"`
	RevisionCount int `json:"revision_count,omitempty"`
}

// HasFlag reports whether the section carries the given risk flag.
func (s *SectionConfidence) HasFlag(flag RiskFlag) bool {
	for _, f := range s.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// ResolutionRate is the resolved fraction as a percentage, 100 when the
// section drew no critiques.
func (s *SectionConfidence) ResolutionRate() float64 {
	if s.TotalCritiques == 0 {
		return 100.0
	}
	resolved := s.TotalCritiques - s.UnresolvedCritiques
	return 100.0 * float64(resolved) / float64(s.TotalCritiques)
}

// ConfidenceScore is the document-level aggregate.
type ConfidenceScore struct {
	Sections []*SectionConfidence `json:"sections"`

	OverallScore float64 `json:"overall_score"`
	OverallLevel Level   `json:"overall_level"`

	TotalCritiques     int  `json:"total_critiques"`
	ResolvedCritiques  int  `json:"resolved_critiques"`
	UnresolvedCritical int  `json:"unresolved_critical"`
	UnresolvedMajor    int  `json:"unresolved_major"`
	DebateRounds       int  `json:"debate_rounds"`
	ConsensusReached   bool `json:"consensus_reached"`

	RiskFlags []RiskFlag `json:"risk_flags,omitempty"`

	RequiresHumanReview bool     `json:"requires_human_review"`
	ReviewReasons       []string `json:"review_reasons,omitempty"`
}

// HasFlag reports whether the document carries the given risk flag.
func (c *ConfidenceScore) HasFlag(flag RiskFlag) bool {
	for _, f := range c.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// ResolutionRate is the document-wide resolved fraction as a percentage,
// 100 when no critiques were raised.
func (c *ConfidenceScore) ResolutionRate() float64 {
	if c.TotalCritiques == 0 {
		return 100.0
	}
	return 100.0 * float64(c.ResolvedCritiques) / float64(c.TotalCritiques)
}
