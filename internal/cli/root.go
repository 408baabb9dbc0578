// Package cli implements the murmurctl command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/murmur/internal/config"
	"github.com/jacentio/murmur/social"
	"github.com/jacentio/murmur/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Backend    string
	DB         string
}

// NewRootCommand creates the root command for murmurctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "murmurctl",
		Short:         "Administer a murmur social graph",
		Long:          "Create and inspect accounts, posts, comments, edges and notifications in a murmur store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "storage backend (sqlite|dynamo), overrides config")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite database path, overrides config")

	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewAccountCommand(opts))
	cmd.AddCommand(NewPostCommand(opts))
	cmd.AddCommand(NewCommentCommand(opts))
	cmd.AddCommand(NewFollowCommand(opts))
	cmd.AddCommand(NewUnfollowCommand(opts))
	cmd.AddCommand(NewLikeCommand(opts))
	cmd.AddCommand(NewUnlikeCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewNotificationsCommand(opts))

	return cmd
}

func (o *RootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if o.DB != "" {
		cfg.SQLite.Path = o.DB
	}
	return cfg, cfg.Validate()
}

// withEngine opens the configured backend, runs fn and closes the backend.
func (o *RootOptions) withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *social.Engine) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	ctx := contextOf(cmd)
	backend, closeFn, err := cfg.OpenBackend(ctx)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	defer closeFn()

	logger := cfg.Logger(cmd.ErrOrStderr())
	engine := social.New(store.New(backend, store.WithLogger(logger)), logger)
	return fn(ctx, engine)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
