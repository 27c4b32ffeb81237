package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gitsage/internal/index"
	"gitsage/internal/loader"
	"gitsage/internal/provider"
	"gitsage/internal/session"
	"gitsage/internal/store"
)

var (
	flagKind      string
	flagKeepIndex bool
)

var loadCmd = &cobra.Command{
	Use:   "load <path|url>",
	Short: "Index a local path or GitHub repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := resolveKind(flagKind)
		if err != nil {
			return err
		}

		ghToken, err := session.Credential(session.SlotGitHub)
		if err != nil {
			return err
		}

		src, err := loader.Resolve(ctx, args[0], kind, ghToken)
		if err != nil {
			return err
		}
		fmt.Printf("Repository ready at %s\n", src.WorkDir)

		st, err := session.LoadState(cfg.StatePath())
		if err != nil {
			return err
		}

		// Indexing only needs an embedder, so a missing LLM key falls
		// back to the local one instead of blocking the load.
		p, err := activeProvider(ctx, st)
		if err != nil {
			if !errors.Is(err, provider.ErrNoCredential) {
				return err
			}
			fmt.Println(warnText("No provider key configured; indexing with the local embedder. Run 'gitsage change-key' before asking questions."))
			p = provider.NewLocal()
		}

		s, err := store.Open(indexPath(src.ID))
		if err != nil {
			return err
		}
		defer s.Close()

		if flagKeepIndex {
			fmt.Println(warnText("--keep-index keeps rows from earlier loads; files deleted since then will still show up in answers."))
		}

		fmt.Println("Indexing...")
		start := time.Now()
		stats, err := index.New(s, newEmbedder(p), cfg).Load(ctx, src, index.Options{
			KeepIndex: flagKeepIndex,
			Progress: func(done, total int) {
				fmt.Printf("\r  %d/%d files", done, total)
			},
		})
		fmt.Println()
		if err != nil {
			return err
		}

		fmt.Printf("Done in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Files:  %d total, %d indexed, %d unchanged, %d failed\n",
			stats.FilesTotal, stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed)
		fmt.Printf("  Chunks: %d\n", stats.ChunksTotal)
		if len(stats.FailedFiles) > 0 {
			fmt.Println(warnText("  Failed: " + strings.Join(stats.FailedFiles, ", ")))
		}

		// A replaced clone is never reachable again, so drop its temp dir.
		if st.Repo != nil && st.Repo.WorkDir != src.WorkDir {
			if err := st.Repo.Cleanup(); err != nil {
				slog.Warn("failed to remove previous clone", "dir", st.Repo.WorkDir, "error", err)
			}
		}

		st.Repo = src
		if err := session.SaveState(cfg.StatePath(), st); err != nil {
			return err
		}
		fmt.Println(successText("Repository indexed and ready for questions."))
		return nil
	},
}

// resolveKind maps the --kind flag to a loader kind. "repo" is the name
// the flag uses for GitHub sources.
func resolveKind(flag string) (string, error) {
	switch flag {
	case "":
		return "", nil
	case "local":
		return loader.KindLocal, nil
	case "repo":
		return loader.KindGitHub, nil
	default:
		return "", fmt.Errorf("invalid --kind %q: use local or repo", flag)
	}
}

func init() {
	loadCmd.Flags().StringVar(&flagKind, "kind", "", "source kind: local or repo (default: detect from the target)")
	loadCmd.Flags().BoolVar(&flagKeepIndex, "keep-index", false, "keep the existing index and only add new or changed files")
	rootCmd.AddCommand(loadCmd)
}
