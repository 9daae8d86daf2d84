// internal/analysis/analyzer.go

// Package analysis turns a repository URL into a structured RepoAnalysis by
// prompting a generative model with facts read from the repository host and
// validating what comes back.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/github"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/common/validation"
	"devmatch-workers/internal/models"
)

// Generator is satisfied by *gemini.Client.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Inspector is satisfied by *github.Client.
type Inspector interface {
	Inspect(ctx context.Context, repoURL string) (*github.Facts, error)
}

var resultSchema = validation.NewSchema(map[string]interface{}{
	"type":     "object",
	"required": []string{"skills_detected"},
	"properties": map[string]interface{}{
		"url":              map[string]interface{}{"type": "string"},
		"name":             map[string]interface{}{"type": "string"},
		"commits_count":    map[string]interface{}{"type": "integer", "minimum": 0},
		"contributions":    map[string]interface{}{"type": "string"},
		"skills_detected":  stringArray(),
		"languages":        stringArray(),
		"frameworks":       stringArray(),
		"analysis_summary": map[string]interface{}{"type": "string"},
	},
})

func stringArray() map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}}
}

const promptTemplate = `You are reviewing the public GitHub repository %s on behalf of its contributor.
Work out what the contributor built and which skills the code demonstrates.

Respond with a single JSON object and nothing else:
{
  "url": "%s",
  "name": "%s",
  "commits_count": <integer>,
  "contributions": "<one or two sentences>",
  "skills_detected": ["<skill>"],
  "languages": ["<language>"],
  "frameworks": ["<framework>"],
  "analysis_summary": "<short paragraph>"
}`

const factsTemplate = `

Facts read from the GitHub API. Treat them as ground truth and do not contradict them:
- full name: %s
- description: %s
- primary language: %s
- languages by size: %s
- commits on %s: %d
- stars: %d
- fork: %t`

const noFactsNote = `

The repository host could not be queried. Base the analysis on the URL only,
report commits_count as 0 and do not guess languages you cannot see.`

type RepoAnalyzer struct {
	gen       Generator
	inspector Inspector
	logger    logger.Logger
	now       func() time.Time
}

// NewRepoAnalyzer builds an analyzer. A nil inspector means no repository
// facts are fetched, so commit counts are always reported as zero.
func NewRepoAnalyzer(gen Generator, inspector Inspector, log logger.Logger) *RepoAnalyzer {
	return &RepoAnalyzer{
		gen:       gen,
		inspector: inspector,
		logger:    log.WithFields(map[string]interface{}{"component": "repo-analyzer"}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Analyze runs one repository through the model. Errors are returned, never
// replaced by a placeholder result. Commit counts and languages come from the
// repository host whenever it can be queried, never from the model.
func (a *RepoAnalyzer) Analyze(ctx context.Context, repoURL string) (*models.RepoAnalysis, error) {
	name := RepoName(repoURL)

	facts, err := a.inspect(ctx, repoURL)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(promptTemplate, repoURL, repoURL, name) + factsBlock(facts)
	raw, err := a.gen.GenerateContent(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewAnalysisTimeoutError(repoURL)
		}
		return nil, errors.NewAnalysisFailedError(repoURL, err)
	}

	result, err := parseResult(raw)
	if err != nil {
		a.logger.Warn("model returned malformed analysis", map[string]interface{}{
			"repoUrl": repoURL,
			"error":   err,
		})
		return nil, err
	}

	if result.URL == "" {
		result.URL = repoURL
	}
	if result.Name == "" {
		result.Name = name
	}
	result.SkillsDetected = dedupe(result.SkillsDetected)
	if facts != nil {
		result.CommitsCount = facts.CommitsCount
		result.Languages = facts.Languages
	} else {
		result.CommitsCount = 0
	}
	result.LastAnalyzed = a.now()

	a.logger.Debug("repository analyzed", map[string]interface{}{
		"repoUrl": repoURL,
		"skills":  len(result.SkillsDetected),
	})
	return result, nil
}

// inspect returns nil facts, and no error, for hosts the inspector cannot read.
func (a *RepoAnalyzer) inspect(ctx context.Context, repoURL string) (*github.Facts, error) {
	if a.inspector == nil {
		return nil, nil
	}
	facts, err := a.inspector.Inspect(ctx, repoURL)
	switch {
	case err == nil:
		return facts, nil
	case errors.Is(err, github.ErrUnsupportedHost):
		a.logger.Info("repository host not inspectable, analyzing from URL only", map[string]interface{}{
			"repoUrl": repoURL,
		})
		return nil, nil
	case ctx.Err() != nil:
		return nil, errors.NewAnalysisTimeoutError(repoURL)
	default:
		return nil, errors.NewAnalysisFailedError(repoURL, err)
	}
}

func factsBlock(f *github.Facts) string {
	if f == nil {
		return noFactsNote
	}
	langs := "none"
	if len(f.Languages) > 0 {
		langs = strings.Join(f.Languages, ", ")
	}
	branch := f.DefaultBranch
	if branch == "" {
		branch = "the default branch"
	}
	return fmt.Sprintf(factsTemplate, f.FullName, f.Description, f.PrimaryLanguage,
		langs, branch, f.CommitsCount, f.Stars, f.Fork)
}

func parseResult(raw string) (*models.RepoAnalysis, error) {
	body := extractJSON(raw)

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, errors.NewMalformedAnalysisError(fmt.Sprintf("decode: %v", err))
	}

	res, err := resultSchema.Validate(doc)
	if err != nil {
		return nil, errors.Wrap(err, "validate analysis")
	}
	if !res.Valid {
		return nil, errors.NewMalformedAnalysisError(res.Error())
	}

	var out models.RepoAnalysis
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, errors.NewMalformedAnalysisError(fmt.Sprintf("decode: %v", err))
	}
	return &out, nil
}

// extractJSON strips markdown code fences around a model response.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

// RepoName is the last path segment of a repository URL.
func RepoName(repoURL string) string {
	u, err := url.Parse(strings.TrimSpace(repoURL))
	if err != nil || u.Path == "" || u.Path == "/" {
		return "repository"
	}
	name := path.Base(strings.TrimSuffix(u.Path, "/"))
	name = strings.TrimSuffix(name, ".git")
	if name == "" || name == "." || name == "/" {
		return "repository"
	}
	return name
}

func dedupe(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
