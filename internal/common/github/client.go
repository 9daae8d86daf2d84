// internal/common/github/client.go

// Package github reads repository facts from the GitHub REST API so analyses
// are built on what the repository actually contains.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"devmatch-workers/internal/common/errors"
	httpclient "devmatch-workers/internal/common/http"
)

const DefaultBaseURL = "https://api.github.com"

var (
	// ErrUnsupportedHost marks repository URLs that are not hosted on GitHub.
	ErrUnsupportedHost = errors.New("repository host is not github.com")
	// ErrRepositoryNotFound covers missing and private repositories alike.
	ErrRepositoryNotFound = errors.New("repository not found")
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Facts is the subset of repository metadata the analyzer relies on.
type Facts struct {
	FullName        string
	Description     string
	DefaultBranch   string
	PrimaryLanguage string
	Languages       []string // by bytes of code, largest first
	CommitsCount    int      // commits on the default branch
	Stars           int
	Fork            bool
	PushedAt        time.Time
}

type Client struct {
	http    *httpclient.Client
	baseURL string
	token   string
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		http:    httpclient.NewClient(cfg.Timeout, "devmatch-workers"),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
	}
}

type repoResponse struct {
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language"`
	Stars         int       `json:"stargazers_count"`
	Fork          bool      `json:"fork"`
	PushedAt      time.Time `json:"pushed_at"`
}

// Inspect fetches the repository, its language breakdown and its commit count.
func (c *Client) Inspect(ctx context.Context, repoURL string) (*Facts, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))

	var meta repoResponse
	if _, err := c.http.GetJSON(ctx, base, c.headers(), &meta); err != nil {
		return nil, c.classify(err, owner+"/"+repo)
	}

	var langBytes map[string]int
	if _, err := c.http.GetJSON(ctx, base+"/languages", c.headers(), &langBytes); err != nil {
		return nil, c.classify(err, owner+"/"+repo)
	}

	commits, err := c.commitCount(ctx, base)
	if err != nil {
		return nil, c.classify(err, owner+"/"+repo)
	}

	return &Facts{
		FullName:        meta.FullName,
		Description:     meta.Description,
		DefaultBranch:   meta.DefaultBranch,
		PrimaryLanguage: meta.Language,
		Languages:       rankLanguages(langBytes),
		CommitsCount:    commits,
		Stars:           meta.Stars,
		Fork:            meta.Fork,
		PushedAt:        meta.PushedAt,
	}, nil
}

// commitCount asks for one commit per page; the page number of the "last"
// link is then the total. Empty repositories answer 409.
func (c *Client) commitCount(ctx context.Context, base string) (int, error) {
	var page []struct {
		SHA string `json:"sha"`
	}
	hdr, err := c.http.GetJSON(ctx, base+"/commits?per_page=1", c.headers(), &page)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return 0, nil
		}
		return 0, err
	}
	if last, ok := lastPage(hdr.Get("Link")); ok {
		return last, nil
	}
	return len(page), nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

func (c *Client) classify(err error, slug string) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return errors.Wrapf(ErrRepositoryNotFound, "%s (private repositories need a token)", slug)
	}
	return errors.Wrapf(err, "github %s", slug)
}

// ParseRepoURL extracts owner and name from https://github.com/<owner>/<repo>[.git][/...].
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	u, err := url.Parse(strings.TrimSpace(repoURL))
	if err != nil {
		return "", "", errors.Wrapf(ErrUnsupportedHost, "parse %q", repoURL)
	}
	host := strings.ToLower(u.Hostname())
	if host != "github.com" && host != "www.github.com" {
		return "", "", errors.Wrapf(ErrUnsupportedHost, "%s", host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Wrapf(ErrUnsupportedHost, "no owner/repo in %q", repoURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

func lastPage(link string) (int, bool) {
	for _, part := range strings.Split(link, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 || !strings.Contains(segs[1], `rel="last"`) {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(segs[0]), "<>")
		u, err := url.Parse(raw)
		if err != nil {
			return 0, false
		}
		n, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func rankLanguages(bytes map[string]int) []string {
	out := make([]string, 0, len(bytes))
	for lang := range bytes {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool {
		if bytes[out[i]] != bytes[out[j]] {
			return bytes[out[i]] > bytes[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
