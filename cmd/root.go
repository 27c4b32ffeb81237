// Package cmd wires the gitsage commands: loading repositories into
// per-repo vector indexes and asking questions against them.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitsage/internal/config"
	"gitsage/internal/logging"
	"gitsage/internal/provider"
	"gitsage/internal/session"
	"gitsage/internal/store"
)

var (
	cfgFile  string
	cfg      *config.Config
	closeLog func() error
)

var (
	warnText    = color.New(color.FgYellow).SprintFunc()
	successText = color.New(color.FgGreen).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:          "gitsage",
	Short:        "Ask questions about any Git repository",
	Long:         "gitsage indexes a local or GitHub repository into a vector store and answers questions, summaries, file explanations, and pull request reviews against it.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		config.SetDefaults(v)

		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		} else {
			if home, err := os.UserHomeDir(); err == nil {
				v.AddConfigPath(filepath.Join(home, ".gitsage"))
			}
			v.AddConfigPath(".")
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
		v.SetEnvPrefix("GITSAGE")
		v.AutomaticEnv()

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("read config: %w", err)
			}
		}

		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded

		closeLog, err = logging.Init(cfg.Debug, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		return nil
	},
}

func Execute() {
	defer func() {
		if closeLog != nil {
			_ = closeLog()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.gitsage/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// requireRepo returns the session state, failing when no repository has
// been loaded or its working tree is gone.
func requireRepo() (*session.State, error) {
	st, err := session.LoadState(cfg.StatePath())
	if err != nil {
		return nil, err
	}
	if st.Repo == nil {
		return nil, errors.New("no repository loaded: run 'gitsage load <path|url>' first")
	}
	if _, err := os.Stat(st.Repo.WorkDir); err != nil {
		return nil, fmt.Errorf("repository %s is no longer at %s: run 'gitsage load' again", st.Repo.ID, st.Repo.WorkDir)
	}
	return st, nil
}

// activeProvider builds the session's provider, defaulting to OpenAI when
// none has been chosen yet.
func activeProvider(ctx context.Context, st *session.State) (provider.Provider, error) {
	name := st.Provider
	if name == "" {
		name = provider.NameOpenAI
	}
	key, err := session.Credential(name)
	if err != nil {
		return nil, err
	}
	p, err := provider.New(ctx, name, key)
	if err != nil {
		if errors.Is(err, provider.ErrNoCredential) {
			return nil, fmt.Errorf("provider %s: %w: run 'gitsage change-key --provider %s' or set %s",
				name, err, name, session.EnvVar(name))
		}
		return nil, err
	}
	return p, nil
}

// newCaller wraps p with the configured timeout and retry policy.
func newCaller(p provider.Provider) provider.Caller {
	return provider.Caller{
		Provider: p,
		Timeout:  cfg.RequestTimeout(),
		Retry:    provider.DefaultRetryConfig(cfg.MaxRetries),
	}
}

// newEmbedder returns the caching embedder for p, falling back to the
// local embedder when p cannot embed.
func newEmbedder(p provider.Provider) provider.Caller {
	return newCaller(provider.WithCache(provider.EmbedderFor(p), cfg.EmbedCacheSize))
}

func indexPath(repoID string) string {
	return filepath.Join(cfg.IndexDir(), repoID+".db")
}

// openIndex opens the repository's existing index, translating a missing
// database into advice to load first.
func openIndex(st *session.State) (*store.SQLiteStore, error) {
	s, err := store.OpenExisting(indexPath(st.Repo.ID))
	if errors.Is(err, store.ErrNoIndex) {
		return nil, fmt.Errorf("no index for %s: run 'gitsage load' first", st.Repo.ID)
	}
	return s, err
}
