package review

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-github/v68/github"
)

const (
	// maxPatchBytes drops a changed file entirely when its diff exceeds the
	// same limit the indexer applies to source files.
	maxPatchBytes = 100 * 1024

	// maxPatchChars caps the diff text carried into a prompt per file.
	maxPatchChars = 5000
)

// binaryExts lists extensions whose diffs are never worth reviewing.
var binaryExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {},
	".ico": {}, ".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {},
}

var prURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// ParsePRURL extracts owner, repository, and number from a GitHub pull
// request URL of the form https://github.com/<owner>/<repo>/pull/<number>.
func ParsePRURL(raw string) (owner, repo string, number int, err error) {
	m := prURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid pull request URL %q: expected https://github.com/<owner>/<repo>/pull/<number>", raw)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid pull request number %q", m[3])
	}
	return m[1], m[2], number, nil
}

// PullRequest is the reviewable snapshot of one pull request: metadata plus
// the changed files that survived the binary and size filters.
type PullRequest struct {
	Owner  string
	Repo   string
	Number int

	Title       string
	Description string
	Author      string
	State       string

	Additions int
	Deletions int

	Files        []ChangedFile
	SkippedFiles []string
}

// ChangedFile is one reviewable file of a pull request. Patch holds the
// unified diff, truncated to maxPatchChars.
type ChangedFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// GitHubFetcher fetches pull requests through the GitHub REST API.
type GitHubFetcher struct {
	client *github.Client
}

// NewGitHubFetcher returns a fetcher authenticated with token. An empty
// token falls back to anonymous access, which only works for public
// repositories and shares the low unauthenticated rate limit.
func NewGitHubFetcher(token string) *GitHubFetcher {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubFetcher{client: client}
}

// Fetch retrieves the pull request and all of its changed files, filtering
// out binary and oversized diffs.
func (f *GitHubFetcher) Fetch(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	pr, resp, err := f.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("pull request %s/%s#%d not found or not accessible", owner, repo, number)
		}
		return nil, fmt.Errorf("fetch pull request %s/%s#%d: %w", owner, repo, number, err)
	}

	out := &PullRequest{
		Owner:       owner,
		Repo:        repo,
		Number:      number,
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		Author:      pr.GetUser().GetLogin(),
		State:       pr.GetState(),
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		files, resp, err := f.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list pull request files: %w", err)
		}
		for _, cf := range files {
			name := cf.GetFilename()
			if reason := skipReason(cf); reason != "" {
				slog.Debug("skipping pull request file", "file", name, "reason", reason)
				out.SkippedFiles = append(out.SkippedFiles, name)
				continue
			}
			out.Files = append(out.Files, ChangedFile{
				Filename:  name,
				Status:    cf.GetStatus(),
				Additions: cf.GetAdditions(),
				Deletions: cf.GetDeletions(),
				Patch:     truncatePatch(cf.GetPatch()),
			})
			out.Additions += cf.GetAdditions()
			out.Deletions += cf.GetDeletions()
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	slog.Debug("fetched pull request",
		"pr", fmt.Sprintf("%s/%s#%d", owner, repo, number),
		"files", len(out.Files),
		"skipped", len(out.SkippedFiles))
	return out, nil
}

// skipReason reports why a changed file is excluded from review, or "" to
// keep it. Binary files come back from the API without a patch.
func skipReason(cf *github.CommitFile) string {
	ext := strings.ToLower(filepath.Ext(cf.GetFilename()))
	if _, ok := binaryExts[ext]; ok {
		return "binary extension"
	}
	patch := cf.GetPatch()
	if patch == "" {
		return "no textual diff"
	}
	if len(patch) > maxPatchBytes {
		return "diff exceeds size limit"
	}
	return ""
}

func truncatePatch(patch string) string {
	if len(patch) <= maxPatchChars {
		return patch
	}
	return patch[:maxPatchChars] + "\n... (truncated)"
}
