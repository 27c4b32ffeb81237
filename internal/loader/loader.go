// Package loader resolves a load target into a working tree on disk.
// Local paths are used in place; GitHub repositories are shallow-cloned
// into a temporary directory.
package loader

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Source kinds.
const (
	KindLocal  = "local"
	KindGitHub = "github"
)

// clonePrefix names the temp directories holding GitHub clones so clear
// can find and remove them later.
const clonePrefix = "gitsage-"

// Source describes a loaded repository.
type Source struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Origin   string    `json:"origin"`
	WorkDir  string    `json:"work_dir"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Resolve turns target into a Source. kind forces "local" or "github";
// empty means detect from the target's shape. token authenticates GitHub
// clones and may be empty for public repositories.
func Resolve(ctx context.Context, target, kind, token string) (*Source, error) {
	if kind == "" {
		kind = DetectKind(target)
	}
	switch kind {
	case KindLocal:
		return resolveLocal(target)
	case KindGitHub:
		return cloneGitHub(ctx, target, token)
	default:
		return nil, fmt.Errorf("unsupported repository kind %q", kind)
	}
}

// DetectKind guesses whether target is a URL or a filesystem path.
func DetectKind(target string) string {
	switch {
	case strings.HasPrefix(target, "http://"),
		strings.HasPrefix(target, "https://"),
		strings.HasPrefix(target, "git@"):
		return KindGitHub
	default:
		return KindLocal
	}
}

func resolveLocal(target string) (*Source, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", target, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	return &Source{
		ID:       RepoID(filepath.Base(abs), abs),
		Kind:     KindLocal,
		Origin:   abs,
		WorkDir:  abs,
		LoadedAt: time.Now(),
	}, nil
}

func cloneGitHub(ctx context.Context, url, token string) (*Source, error) {
	origin := canonicalURL(url)

	dir, err := os.MkdirTemp("", clonePrefix)
	if err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}

	opts := &git.CloneOptions{
		URL:          origin,
		Depth:        1,
		SingleBranch: true,
	}
	if token != "" {
		// Any non-empty username works for token auth over HTTPS.
		opts.Auth = &githttp.BasicAuth{Username: "gitsage", Password: token}
	}

	slog.Debug("cloning repository", "url", origin, "dir", dir)
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("clone %s: %w", origin, err)
	}

	name := strings.TrimSuffix(filepath.Base(origin), ".git")
	return &Source{
		ID:       RepoID(name, origin),
		Kind:     KindGitHub,
		Origin:   origin,
		WorkDir:  dir,
		LoadedAt: time.Now(),
	}, nil
}

// canonicalURL normalizes GitHub URLs so the same repository always maps
// to the same origin. SSH remotes are rewritten to HTTPS for token auth.
func canonicalURL(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")
	if rest, ok := strings.CutPrefix(url, "git@github.com:"); ok {
		url = "https://github.com/" + rest
	}
	return strings.TrimSuffix(url, ".git")
}

// RepoID derives the per-repository index name: the repository basename
// plus a short hash of its origin, so same-named repositories from
// different origins get separate indexes.
func RepoID(name, origin string) string {
	sum := sha256.Sum256([]byte(origin))
	return fmt.Sprintf("%s-%x", sanitizeName(name), sum[:4])
}

func sanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	if sb.Len() == 0 {
		return "repo"
	}
	return sb.String()
}

// Cleanup removes the working tree of a cloned source. Local sources are
// left untouched.
func (s *Source) Cleanup() error {
	if s == nil || s.Kind != KindGitHub || s.WorkDir == "" {
		return nil
	}
	return os.RemoveAll(s.WorkDir)
}

// CleanClones removes every leftover clone directory under the system
// temp dir and returns how many were deleted.
func CleanClones() (int, error) {
	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), clonePrefix) {
			continue
		}
		dir := filepath.Join(os.TempDir(), entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove clone dir", "dir", dir, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
