// internal/scoring/scoring.go

// Package scoring holds the pure scoring functions used for matching and
// feed ranking. All scores live on a 0..100 scale.
package scoring

import (
	"math"
	"strings"
	"time"
)

// Final score weights.
const (
	WeightSemantic  = 0.50
	WeightSkill     = 0.20
	WeightActivity  = 0.20
	WeightReadiness = 0.10
)

// Visibility policy.
const (
	ExposurePenalty            = 5.0
	FreshBonus                 = 5.0
	UnderexposedBonus          = 5.0
	UnderexposedScoreThreshold = 70.0
	UnderexposedShowLimit      = 5
	DefaultFreshWindow         = 7 * 24 * time.Hour
)

// FinalScore combines the four component scores. Each component is clamped
// to [0,100] first and the result is rounded to two decimals.
func FinalScore(semantic, skillOverlap, activity, readiness float64) float64 {
	total := WeightSemantic*Clamp(semantic) +
		WeightSkill*Clamp(skillOverlap) +
		WeightActivity*Clamp(activity) +
		WeightReadiness*Clamp(readiness)
	return Round2(total)
}

// SkillOverlap is the share of required skills the holder has, compared
// case-insensitively. No required skills yields 0.
func SkillOverlap(required, held []string) float64 {
	req := normalizeSet(required)
	if len(req) == 0 {
		return 0
	}
	have := normalizeSet(held)
	if len(have) == 0 {
		return 0
	}

	matched := 0
	for skill := range req {
		if _, ok := have[skill]; ok {
			matched++
		}
	}
	return 100 * float64(matched) / float64(len(req))
}

// VisibilityScore decays a final score by how often it was shown and boosts
// fresh seekers and underexposed records.
func VisibilityScore(final float64, timesShown int, fresh, underexposed bool) float64 {
	if timesShown < 0 {
		timesShown = 0
	}
	v := final - ExposurePenalty*math.Log(1+float64(timesShown))
	if fresh {
		v += FreshBonus
	}
	if underexposed {
		v += UnderexposedBonus
	}
	return Round2(v)
}

// IsUnderexposed reports a strong match that has rarely been shown.
func IsUnderexposed(final float64, timesShown int) bool {
	return final > UnderexposedScoreThreshold && timesShown < UnderexposedShowLimit
}

// IsFresh reports whether createdAt lies within window before now.
func IsFresh(createdAt, now time.Time, window time.Duration) bool {
	if createdAt.IsZero() {
		return false
	}
	return now.Sub(createdAt) < window
}

// CosineSimilarity returns 0 for empty, mismatched or zero-norm vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SemanticScore maps cosine similarity onto 0..100.
func SemanticScore(a, b []float64) float64 {
	return Clamp(100 * CosineSimilarity(a, b))
}

func Clamp(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 100:
		return 100
	default:
		return x
	}
}

func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func normalizeSet(skills []string) map[string]struct{} {
	out := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		out[s] = struct{}{}
	}
	return out
}
