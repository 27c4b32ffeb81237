// Package agent orchestrates the single-call commands: ask, summarize,
// explain, and suggest. Each builds its prompt scaffold, runs one
// generation through the retrying caller, and post-processes the output.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gitsage/internal/config"
	"gitsage/internal/provider"
	"gitsage/internal/rag"
	"gitsage/internal/store"
	"gitsage/internal/token"
)

const (
	systemAssistant = "You are a code assistant helping the user understand a codebase."
	systemExplain   = "You are a code assistant. Explain the following code file in clear, concise language for a developer."
	systemSuggest   = "You are a code review assistant. Suggest improvements to the following code file in terms of readability, performance, and structure."

	noContextFound = "No relevant code chunks found."
)

// Retriever is the slice of rag.Retriever the agent depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]store.SearchResult, error)
}

// Agent answers questions about one loaded repository.
type Agent struct {
	generator provider.Caller
	retriever Retriever
	workDir   string
	cfg       *config.Config
}

// New builds an Agent over the repository working tree at workDir.
func New(generator provider.Caller, retriever Retriever, workDir string, cfg *config.Config) *Agent {
	return &Agent{
		generator: generator,
		retriever: retriever,
		workDir:   workDir,
		cfg:       cfg,
	}
}

// Ask retrieves context for the question and generates an answer citing
// file paths and line ranges.
func (a *Agent) Ask(ctx context.Context, question string, k int) (string, error) {
	tree, err := BuildFileTree(a.workDir, a.cfg.WalkOptions())
	if err != nil {
		slog.Warn("file tree unavailable", "error", err)
		tree = ""
	}
	tree = token.Truncate(tree, fileTreeTokenCap)

	results, err := a.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return "", err
	}

	contextText := noContextFound
	assembled, err := rag.Assemble(results, a.cfg.ContextTokenBudget)
	switch {
	case errors.Is(err, rag.ErrBudgetTooSmall):
		slog.Warn("retrieved context exceeds the budget, answering without it")
	case err != nil:
		return "", err
	case assembled.Text != "":
		contextText = assembled.Text
	}

	prompt := fmt.Sprintf("%s\n\nContext from Vector Search:\n%s\n\nQuestion: %s", tree, contextText, question)
	return a.generator.Generate(ctx, provider.Request{System: systemAssistant, Prompt: prompt})
}

// Summarize describes the repository from its file tree and README. No
// retrieval is involved.
func (a *Agent) Summarize(ctx context.Context) (string, error) {
	tree, err := BuildFileTree(a.workDir, a.cfg.WalkOptions())
	if err != nil {
		return "", err
	}
	tree = token.Truncate(tree, fileTreeTokenCap)

	readme, ok := FindReadme(a.workDir)
	if !ok {
		readme = "No README.md found in the repository."
	}
	readme = token.Truncate(readme, a.cfg.ContextTokenBudget)

	prompt := fmt.Sprintf(
		"%s\n\nREADME Content:\n%s\n\nTask: Provide a concise summary of the repository, including its structure, key files, and main purpose based on the file tree and README content.",
		tree, readme,
	)
	return a.generator.Generate(ctx, provider.Request{System: systemAssistant, Prompt: prompt})
}

// Explain describes one file of the repository in plain text.
func (a *Agent) Explain(ctx context.Context, relPath string) (string, error) {
	content, err := a.readSourceFile(relPath)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf("Explain the file `%s`.\n\nCode:\n\n%s", relPath, content)
	out, err := a.generator.Generate(ctx, provider.Request{System: systemExplain, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return stripMarkdown(out), nil
}

// Suggest proposes improvements for one file in plain text.
func (a *Agent) Suggest(ctx context.Context, relPath string) (string, error) {
	content, err := a.readSourceFile(relPath)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf("Suggest improvements for the file `%s`.\n\nCode:\n\n%s", relPath, content)
	out, err := a.generator.Generate(ctx, provider.Request{System: systemSuggest, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return stripMarkdown(out), nil
}

// readSourceFile reads a repository-relative file, refusing paths that
// escape the working tree.
func (a *Agent) readSourceFile(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("path must be relative to the repository: %s", relPath)
	}
	clean := filepath.Clean(relPath)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the repository: %s", relPath)
	}

	full := filepath.Join(a.workDir, clean)
	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", relPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", relPath)
	}
	if maxBytes := a.cfg.MaxFileBytes; maxBytes > 0 && info.Size() > maxBytes {
		return "", fmt.Errorf("%s is %d bytes, above the %d byte limit", relPath, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", relPath, err)
	}

	content := string(data)
	if budget := a.cfg.ContextTokenBudget; budget > 0 && token.Estimate(content) > budget {
		slog.Warn("file exceeds the context budget, truncating", "path", relPath, "budget", budget)
		content = token.Truncate(content, budget)
	}
	return content, nil
}

// stripMarkdown flattens generation output to plain text for terminal
// display.
func stripMarkdown(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
