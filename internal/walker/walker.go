// Package walker discovers indexable source files under a repository root.
// It walks the tree in lexical order, applies directory and extension ignore
// rules, a size ceiling, and binary detection, and emits the survivors over a
// channel together with a final report of everything skipped.
package walker

import (
	"bufio"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileCandidate is a file that passed every filter and is ready for chunking.
type FileCandidate struct {
	Path     string // absolute
	RelPath  string // slash-separated, relative to the walk root
	Size     int64
	Language string // extension without the dot, "" when none
	Binary   bool   // always false for emitted candidates
}

// Report summarizes a completed walk.
type Report struct {
	Candidates     int
	SkippedIgnored int
	SkippedLarge   int
	SkippedBinary  int
	Unreadable     int
	Err            error // fatal walk error, nil on success
}

// Options control filtering. Zero values fall back to the defaults below.
type Options struct {
	MaxFileBytes int64
	IgnoreDirs   []string // merged with the default directory ignore set
	IgnoreExts   []string // merged with the default extension denylist
}

const defaultMaxFileBytes = 100 * 1024

// sniffLen is how much of a file is inspected for binary content.
const sniffLen = 1024

var defaultIgnoreDirs = map[string]bool{
	".git": true, ".svn": true, ".hg": true,
	"node_modules": true, ".npm": true, ".yarn": true,
	"__pycache__": true, ".pytest_cache": true, "htmlcov": true,
	".venv": true, "venv": true, "env": true, ".env": true,
	".idea": true, ".vscode": true, ".vs": true, ".vim": true, ".emacs.d": true, ".atom": true,
	"build": true, "dist": true, "target": true, "out": true, "bin": true, "obj": true,
	".gradle": true, ".mvn": true, "gradle": true, "maven": true,
	"logs": true, "tmp": true, "temp": true, ".tmp": true, ".temp": true,
	".cache": true, "cache": true, ".data": true, "data": true,
	".github": true, ".circleci": true,
	"site": true, "_site": true, ".sass-cache": true,
	"coverage": true, ".nyc_output": true, "test-results": true, "playwright-report": true,
	".Spotlight-V100": true, ".Trashes": true,
	".gitsage": true,
}

var defaultIgnoreFiles = map[string]bool{
	".DS_Store": true, "Thumbs.db": true, "ehthumbs.db": true, "desktop.ini": true,
	"package-lock.json": true, "yarn.lock": true,
	".gitignore": true, ".gitattributes": true, ".dockerignore": true,
	"LICENSE": true, "README.md": true, "CHANGELOG.md": true, "CONTRIBUTING.md": true, "CODE_OF_CONDUCT.md": true,
}

var defaultIgnoreExts = map[string]bool{
	".pyc": true, ".pyo": true, ".pyd": true, ".so": true, ".dll": true, ".dylib": true,
	".exe": true, ".bin": true, ".obj": true, ".o": true, ".a": true, ".app": true,
	".zip": true, ".gz": true, ".rar": true, ".7z": true, ".tar": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".svg": true, ".ico": true,
	".mp4": true, ".avi": true, ".mov": true, ".wmv": true, ".flv": true,
	".mp3": true, ".wav": true, ".flac": true, ".aac": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true, ".ods": true, ".odp": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
	".bak": true, ".backup": true, ".old": true, ".orig": true,
	".lock": true, ".log": true,
}

// Walk traverses the tree rooted at root and sends every candidate on the
// returned channel in lexical path order. After the candidate channel closes,
// exactly one Report is sent on the second channel.
func Walk(root string, opts Options) (<-chan FileCandidate, <-chan Report) {
	files := make(chan FileCandidate, 64)
	reports := make(chan Report, 1)

	go func() {
		defer close(files)
		defer close(reports)

		var rep Report

		absRoot, err := filepath.Abs(root)
		if err != nil {
			rep.Err = err
			reports <- rep
			return
		}

		maxBytes := opts.MaxFileBytes
		if maxBytes <= 0 {
			maxBytes = defaultMaxFileBytes
		}
		ignoreDirs := mergeSet(defaultIgnoreDirs, opts.IgnoreDirs)
		ignoreExts := mergeSet(defaultIgnoreExts, normalizeExts(opts.IgnoreExts))
		matcher := loadGitignore(absRoot)

		rep.Err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				rep.Unreadable++
				slog.Warn("skipping unreadable path", slog.String("path", path), slog.Any("err", err))
				return nil
			}

			rel, relErr := filepath.Rel(absRoot, path)
			if relErr != nil || rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if ignoreDirs[d.Name()] || matchGitignore(matcher, rel, true) {
					rep.SkippedIgnored++
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			if defaultIgnoreFiles[d.Name()] || matchGitignore(matcher, rel, false) {
				rep.SkippedIgnored++
				return nil
			}

			ext := strings.ToLower(filepath.Ext(path))
			if ignoreExts[ext] {
				rep.SkippedIgnored++
				return nil
			}

			info, err := d.Info()
			if err != nil {
				rep.Unreadable++
				slog.Warn("skipping unreadable file", slog.String("path", rel), slog.Any("err", err))
				return nil
			}
			if info.Size() == 0 {
				rep.SkippedIgnored++
				return nil
			}
			if info.Size() > maxBytes {
				rep.SkippedLarge++
				return nil
			}

			cand := FileCandidate{
				Path:     path,
				RelPath:  rel,
				Size:     info.Size(),
				Language: strings.TrimPrefix(ext, "."),
			}

			binary, err := sniffBinary(path)
			if err != nil {
				rep.Unreadable++
				slog.Warn("skipping unreadable file", slog.String("path", rel), slog.Any("err", err))
				return nil
			}
			if binary {
				cand.Binary = true
				rep.SkippedBinary++
				return nil
			}

			rep.Candidates++
			files <- cand
			return nil
		})

		reports <- rep
	}()

	return files, reports
}

// Collect drains a Walk into a slice. Convenient for callers that need the
// whole candidate list up front, such as file-tree rendering and tests.
func Collect(root string, opts Options) ([]FileCandidate, Report, error) {
	files, reports := Walk(root, opts)
	var out []FileCandidate
	for f := range files {
		out = append(out, f)
	}
	rep := <-reports
	return out, rep, rep.Err
}

// sniffBinary reports whether the file looks binary: a NUL byte anywhere in
// the first sniffLen bytes.
func sniffBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return false, err
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true, nil
		}
	}
	return false, nil
}

// loadGitignore builds a matcher from the repository root's .gitignore, or
// returns nil when the file is absent or empty.
func loadGitignore(root string) gitignore.Matcher {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.NewMatcher(patterns)
}

func matchGitignore(m gitignore.Matcher, rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	return m.Match(strings.Split(rel, "/"), isDir)
}

func mergeSet(defaults map[string]bool, extra []string) map[string]bool {
	if len(extra) == 0 {
		return defaults
	}
	merged := make(map[string]bool, len(defaults)+len(extra))
	for k := range defaults {
		merged[k] = true
	}
	for _, e := range extra {
		if e != "" {
			merged[e] = true
		}
	}
	return merged
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, strings.ToLower(e))
	}
	return out
}
