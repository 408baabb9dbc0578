package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jacentio/murmur/social"
)

// NewFollowCommand creates the follow command.
func NewFollowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "follow <from-id> <to-id>",
		Short: "Follow an account and notify it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				n, err := e.FollowAccount(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, n)
			})
		},
	}
}

// NewUnfollowCommand creates the unfollow command.
func NewUnfollowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unfollow <from-id> <to-id>",
		Short: "Stop following an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				return e.UnfollowAccount(ctx, args[0], args[1])
			})
		},
	}
}

// NewLikeCommand creates the like command.
func NewLikeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "like <actor-id> <post-id>",
		Short: "Like a post and notify its owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				n, err := e.LikePost(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, n)
			})
		},
	}
}

// NewUnlikeCommand creates the unlike command.
func NewUnlikeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlike <actor-id> <post-id>",
		Short: "Remove one like from a post",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				return e.UnlikePost(ctx, args[0], args[1])
			})
		},
	}
}

// NewNotificationsCommand creates the notifications command.
func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "notifications <account-id>",
		Short: "List notifications addressed to an account, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				ns, err := e.Notifications(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, ns)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum notifications to print (0 for all)")
	return cmd
}
