// internal/scoring/portfolio.go
package scoring

import (
	"math"
	"strings"

	"devmatch-workers/internal/models"
)

type PortfolioRank string

const (
	RankBeginner     PortfolioRank = "Beginner"
	RankIntermediate PortfolioRank = "Intermediate"
	RankAdvanced     PortfolioRank = "Advanced"
	RankExpert       PortfolioRank = "Expert"
)

// Portfolio is the readiness signal derived from analyzed repositories.
type Portfolio struct {
	Score     int           `json:"score"`
	Rank      PortfolioRank `json:"rank"`
	Repos     int           `json:"repoCount"`
	Commits   int           `json:"totalCommits"`
	Languages int           `json:"languagesDiversity"`
	Skills    int           `json:"skillsCount"`
}

// PortfolioScore rates a set of repository analyses on 0..100:
// up to 20 for repository count, 30 for commits, 25 for language
// diversity and 25 for distinct skills.
func PortfolioScore(analyses []models.RepoAnalysis) Portfolio {
	if len(analyses) == 0 {
		return Portfolio{Rank: RankBeginner}
	}

	commits := 0
	languages := map[string]struct{}{}
	skills := map[string]struct{}{}
	for _, a := range analyses {
		if a.CommitsCount > 0 {
			commits += a.CommitsCount
		}
		for _, l := range a.Languages {
			languages[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
		}
		for _, s := range a.SkillsDetected {
			skills[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
		}
	}

	score := math.Min(float64(len(analyses))*4, 20)
	score += commitPoints(commits)
	score += math.Min(float64(len(languages))*3.5, 25)
	score += math.Min(float64(len(skills))*2.5, 25)

	p := Portfolio{
		Score:     int(math.Min(score, 100)),
		Repos:     len(analyses),
		Commits:   commits,
		Languages: len(languages),
		Skills:    len(skills),
	}
	p.Rank = rankFor(p.Score)
	return p
}

func commitPoints(commits int) float64 {
	c := float64(commits)
	switch {
	case commits <= 10:
		return c
	case commits <= 50:
		return 10 + (c-10)/40*10
	case commits <= 100:
		return 20 + (c-50)/50*5
	default:
		return 25 + math.Min((c-100)/100*5, 5)
	}
}

func rankFor(score int) PortfolioRank {
	switch {
	case score >= 80:
		return RankExpert
	case score >= 60:
		return RankAdvanced
	case score >= 35:
		return RankIntermediate
	default:
		return RankBeginner
	}
}
