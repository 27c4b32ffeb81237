// Package review implements pull request review. The changed files of a PR
// rarely fit a single generation call, so the reviewer groups them under a
// per-call token budget, analyzes each group separately, and synthesizes the
// group analyses into one review. Failed group calls are retried once and
// then excluded, so a single flaky call degrades the review instead of
// aborting it.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gitsage/internal/config"
	"gitsage/internal/provider"
	"gitsage/internal/token"
)

// State is one step of the review flow. The zero value is StateIdle.
type State int

const (
	StateIdle State = iota
	StateContextReady
	StateGenerating
	StatePartialFailure
	StateSynthesizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateContextReady:
		return "context-ready"
	case StateGenerating:
		return "generating"
	case StatePartialFailure:
		return "partial-failure"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNoAnalyses means every per-group analysis call failed, leaving nothing
// to synthesize a review from.
var ErrNoAnalyses = errors.New("all file analyses failed")

const (
	systemReviewer = "You are a senior software engineer reviewing a GitHub Pull Request."

	// maxContextTokens bounds the context portion of any single review
	// prompt, independent of the per-group budget.
	maxContextTokens = 8000

	analysisInstructions = `Please analyze these changed files and report your findings in the following format:

## Summary
Brief overview of what these changes do.

## Key Changes
- List the most important modifications
- Highlight architectural changes if any
- Note any new features or bug fixes

## Potential Issues
- Security concerns
- Performance implications
- Code quality issues
- Potential bugs or edge cases

## Suggestions for Improvement
- Code style suggestions
- Better approaches or alternatives
- Missing tests or documentation
- Performance optimizations`

	synthesisInstructions = `Please combine the partial analyses above into one comprehensive review in the following format:

## Summary
Brief overview of what this PR does and its main changes.

## Key Changes
- List the most important modifications
- Highlight architectural changes if any
- Note any new features or bug fixes

## Potential Issues
- Security concerns
- Performance implications
- Code quality issues
- Potential bugs or edge cases

## Suggestions for Improvement
- Code style suggestions
- Better approaches or alternatives
- Missing tests or documentation
- Performance optimizations

## Overall Assessment
- Risk level (Low/Medium/High)
- Whether this PR is ready to merge
- Any blocking issues that need to be addressed

## Recommendations
- Specific actionable feedback
- Priority of suggested changes

Be thorough but concise. Focus on the most important aspects that would affect code quality, maintainability, and functionality.`
)

// Fetcher retrieves a pull request and its changed files.
type Fetcher interface {
	Fetch(ctx context.Context, owner, repo string, number int) (*PullRequest, error)
}

// Result is the outcome of one review run.
type Result struct {
	Review       string
	Groups       int
	FailedFiles  []string
	SkippedFiles []string
}

// Reviewer runs the multi-call review flow for one pull request at a time.
type Reviewer struct {
	fetcher   Fetcher
	generator provider.Caller
	cfg       *config.Config

	mu     sync.Mutex
	state  State
	states []State
}

// New returns a Reviewer in StateIdle.
func New(fetcher Fetcher, generator provider.Caller, cfg *config.Config) *Reviewer {
	return &Reviewer{
		fetcher:   fetcher,
		generator: generator,
		cfg:       cfg,
		state:     StateIdle,
		states:    []State{StateIdle},
	}
}

// State returns the current flow state.
func (r *Reviewer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StateHistory returns every state the reviewer has passed through, in
// order, starting with StateIdle.
func (r *Reviewer) StateHistory() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}

func (r *Reviewer) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.states = append(r.states, s)
	r.mu.Unlock()
	slog.Debug("review state", "state", s.String())
}

// Review fetches the pull request at prURL, analyzes its changed files in
// token-bounded groups, and synthesizes one review. Groups whose analysis
// call fails after a retry are excluded and reported in the result.
func (r *Reviewer) Review(ctx context.Context, prURL string) (*Result, error) {
	owner, repo, number, err := ParsePRURL(prURL)
	if err != nil {
		return nil, err
	}

	pr, err := r.fetcher.Fetch(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	if len(pr.Files) == 0 {
		return nil, fmt.Errorf("pull request %s/%s#%d has no reviewable text changes", owner, repo, number)
	}

	groups := groupFiles(pr.Files, r.cfg.ReviewCallTokenBudget)
	header := headerContext(pr)
	r.setState(StateContextReady)

	r.setState(StateGenerating)

	// Each analysis call gets exactly one retry. The configured retry
	// ceiling still applies to the synthesis call.
	perGroup := r.generator
	perGroup.Retry.MaxRetries = 1

	type analysis struct {
		label string
		text  string
	}
	var analyses []analysis
	var failed []string
	var lastErr error
	for i, g := range groups {
		label := strings.Join(g.names(), ", ")
		text, err := perGroup.Generate(ctx, provider.Request{
			System: systemReviewer,
			Prompt: analysisPrompt(header, g),
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("group analysis failed", "group", i+1, "files", label, "error", err)
			failed = append(failed, g.names()...)
			lastErr = err
			continue
		}
		analyses = append(analyses, analysis{label: label, text: text})
		slog.Debug("group analysis complete", "group", i+1, "files", label)
	}

	if len(analyses) == 0 {
		return nil, fmt.Errorf("%w: last error: %v", ErrNoAnalyses, lastErr)
	}
	if len(failed) > 0 {
		r.setState(StatePartialFailure)
	}

	r.setState(StateSynthesizing)
	var parts strings.Builder
	for i, a := range analyses {
		fmt.Fprintf(&parts, "\n### Analysis %d (%s)\n%s\n", i+1, a.label, a.text)
	}
	review, err := r.generator.Generate(ctx, provider.Request{
		System: systemReviewer,
		Prompt: synthesisPrompt(header, parts.String(), failed, pr.SkippedFiles),
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize review: %w", err)
	}

	r.setState(StateDone)
	return &Result{
		Review:       review,
		Groups:       len(groups),
		FailedFiles:  failed,
		SkippedFiles: pr.SkippedFiles,
	}, nil
}

// fileGroup is a set of changed files whose combined context fits one
// analysis call.
type fileGroup struct {
	files  []ChangedFile
	tokens int
}

func (g fileGroup) names() []string {
	out := make([]string, len(g.files))
	for i, f := range g.files {
		out[i] = f.Filename
	}
	return out
}

// groupFiles packs files greedily in order, starting a new group whenever
// adding the next file would exceed budget. A file too large for any group
// still gets a group of its own. Non-positive budgets give a single group.
func groupFiles(files []ChangedFile, budget int) []fileGroup {
	var groups []fileGroup
	var cur fileGroup
	for _, f := range files {
		cost := token.Estimate(fileContext(f))
		if budget > 0 && len(cur.files) > 0 && cur.tokens+cost > budget {
			groups = append(groups, cur)
			cur = fileGroup{}
		}
		cur.files = append(cur.files, f)
		cur.tokens += cost
	}
	if len(cur.files) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

func headerContext(pr *PullRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PR Title: %s\n", pr.Title)
	if pr.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", pr.Description)
	}
	fmt.Fprintf(&b, "Author: %s\n", pr.Author)
	fmt.Fprintf(&b, "State: %s\n", pr.State)
	fmt.Fprintf(&b, "Files changed: %d\n", len(pr.Files))
	fmt.Fprintf(&b, "Total changes: +%d -%d lines", pr.Additions, pr.Deletions)
	return b.String()
}

func fileContext(f ChangedFile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nFile: %s\n", f.Filename)
	fmt.Fprintf(&b, "Status: %s\n", f.Status)
	fmt.Fprintf(&b, "Changes: +%d -%d lines\n", f.Additions, f.Deletions)
	if f.Patch != "" {
		b.WriteString("Diff:\n")
		b.WriteString(f.Patch)
		b.WriteString("\n")
	}
	return b.String()
}

func analysisPrompt(header string, g fileGroup) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\nChanged Files:\n")
	for _, f := range g.files {
		b.WriteString(fileContext(f))
	}
	return token.Truncate(b.String(), maxContextTokens) + "\n\n" + analysisInstructions
}

func synthesisPrompt(header, analyses string, failed, skipped []string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\nPartial analyses of the changed files:\n")
	b.WriteString(analyses)
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\nNote: analysis failed for these files and their findings are not included: %s\n", strings.Join(failed, ", "))
	}
	if len(skipped) > 0 {
		fmt.Fprintf(&b, "\nNote: these files were skipped (binary or oversized): %s\n", strings.Join(skipped, ", "))
	}
	return token.Truncate(b.String(), maxContextTokens) + "\n\n" + synthesisInstructions
}
