package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitsage/internal/walker"
)

// fileTreeTokenCap bounds how much of the prompt the tree may take.
const fileTreeTokenCap = 800

// BuildFileTree renders the repository's indexable files grouped by
// directory, the same candidate set the index is built from.
func BuildFileTree(root string, opts walker.Options) (string, error) {
	candidates, _, err := walker.Collect(root, opts)
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}

	byDir := make(map[string][]string)
	for _, c := range candidates {
		dir := filepath.ToSlash(filepath.Dir(c.RelPath))
		if dir == "." {
			dir = "root"
		}
		byDir[dir] = append(byDir[dir], filepath.Base(c.RelPath))
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool {
		if (dirs[i] == "root") != (dirs[j] == "root") {
			return dirs[i] == "root"
		}
		return dirs[i] < dirs[j]
	})

	var sb strings.Builder
	sb.WriteString("Repository File Tree:\n")
	for _, dir := range dirs {
		fmt.Fprintf(&sb, "\n%s/\n", dir)
		for _, file := range byDir[dir] {
			fmt.Fprintf(&sb, "  - %s\n", file)
		}
	}
	return sb.String(), nil
}

// FindReadme returns the first README.md under root, rendered with its
// relative path as a heading. ok is false when none exists.
func FindReadme(root string) (content string, ok bool) {
	var readmePath string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || readmePath != "" {
			return filepath.SkipAll
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if !d.IsDir() && d.Name() == "README.md" {
			readmePath = path
			return filepath.SkipAll
		}
		return nil
	})
	if readmePath == "" {
		return "", false
	}

	data, err := os.ReadFile(readmePath)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, readmePath)
	if err != nil {
		rel = "README.md"
	}
	return fmt.Sprintf("# %s\n%s", filepath.ToSlash(rel), strings.TrimSpace(string(data))), true
}
