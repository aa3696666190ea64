// Package scoring computes risk scores from impact and likelihood factors.
// This is pure domain logic - no I/O, no side effects. Both the initial
// assessment and the post-mitigation reassessment run through Compute so the
// formula lives in exactly one place.
package scoring

// Level is the qualitative band a numeric score falls into. Bands drive
// review-queue colour coding and the treatment policy check.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Factor bounds. Every input factor is clamped into this range before use,
// so historical rows with zero or out-of-range values still produce a score
// inside [MinScore, MaxScore].
const (
	MinFactor = 1
	MaxFactor = 5
)

// Score bounds implied by the factor bounds: (1+1+1)*1 and (5+5+5)*5.
const (
	MinScore = (MinFactor + MinFactor + MinFactor) * MinFactor
	MaxScore = (MaxFactor + MaxFactor + MaxFactor) * MaxFactor
)

// Band thresholds. A score below mediumFloor is LOW, below highFloor is
// MEDIUM, anything else is HIGH.
const (
	mediumFloor = 15
	highFloor   = 36
)

// Result pairs a computed score with its level band. A Result is only ever
// produced by Compute, so a held Result is always internally consistent.
type Result struct {
	Score int   `json:"score"`
	Level Level `json:"level"`
}

// Compute derives the risk score from the three impact factors and the
// likelihood:
//
//	score = (confidentiality + integrity + availability) * likelihood
//
// Each factor is clamped into [MinFactor, MaxFactor] first, which makes the
// function total: any int inputs yield a valid Result.
func Compute(confidentiality, integrity, availability, likelihood int) Result {
	c := Clamp(confidentiality)
	i := Clamp(integrity)
	a := Clamp(availability)
	l := Clamp(likelihood)

	score := (c + i + a) * l
	return Result{Score: score, Level: LevelFor(score)}
}

// Clamp forces a factor into the valid [MinFactor, MaxFactor] range.
// Values below the floor (including the zero a missing legacy value scans
// into) become MinFactor; values above the ceiling become MaxFactor.
func Clamp(v int) int {
	if v < MinFactor {
		return MinFactor
	}
	if v > MaxFactor {
		return MaxFactor
	}
	return v
}

// LevelFor maps a score onto its qualitative band.
func LevelFor(score int) Level {
	switch {
	case score < mediumFloor:
		return LevelLow
	case score < highFloor:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// IsValid reports whether the level is one of the supported bands.
// Use when scanning persisted rows that predate the current band set.
func (l Level) IsValid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

func (l Level) String() string {
	return string(l)
}
