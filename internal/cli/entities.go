package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacentio/murmur/model"
	"github.com/jacentio/murmur/social"
)

// AccountOptions holds flags for account commands.
type AccountOptions struct {
	*RootOptions
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	Username   string
	Bio        string
	Location   string
	Set        []string
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Register an account",
		Example: `  murmurctl account create --external-id auth0|1 --email ada@example.com \
    --first-name Ada --last-name Lovelace --username ada`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := model.Fields{
				"externalId": opts.ExternalID,
				"email":      opts.Email,
				"firstName":  opts.FirstName,
				"lastName":   opts.LastName,
				"username":   opts.Username,
			}
			if opts.Bio != "" {
				fields["bio"] = opts.Bio
			}
			if opts.Location != "" {
				fields["location"] = opts.Location
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				acct, err := e.RegisterAccount(ctx, fields)
				if err != nil {
					return err
				}
				return printJSON(cmd, acct)
			})
		},
	}
	create.Flags().StringVar(&opts.ExternalID, "external-id", "", "identity provider subject")
	create.Flags().StringVar(&opts.Email, "email", "", "email address")
	create.Flags().StringVar(&opts.FirstName, "first-name", "", "first name")
	create.Flags().StringVar(&opts.LastName, "last-name", "", "last name")
	create.Flags().StringVar(&opts.Username, "username", "", "unique handle")
	create.Flags().StringVar(&opts.Bio, "bio", "", "profile bio")
	create.Flags().StringVar(&opts.Location, "location", "", "profile location")

	update := &cobra.Command{
		Use:     "update <account-id>",
		Short:   "Update profile fields",
		Example: `  murmurctl account update 0b6c... --set bio="hello" --set location=London`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseAssignments(opts.Set)
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				acct, err := e.UpdateProfile(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSON(cmd, acct)
			})
		},
	}
	update.Flags().StringArrayVar(&opts.Set, "set", nil, "field=value assignment (repeatable)")

	cmd.AddCommand(create, update)
	return cmd
}

// PostOptions holds flags for post commands.
type PostOptions struct {
	*RootOptions
	User    string
	Content string
	Image   string
}

// NewPostCommand creates the post command group.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Manage posts",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Publish a post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				post, err := e.CreatePost(ctx, opts.User, opts.Content, opts.Image)
				if err != nil {
					return err
				}
				return printJSON(cmd, post)
			})
		},
	}
	create.Flags().StringVar(&opts.User, "user", "", "owning account id")
	create.Flags().StringVar(&opts.Content, "content", "", "post text")
	create.Flags().StringVar(&opts.Image, "image", "", "image URL")
	_ = create.MarkFlagRequired("user")

	list := &cobra.Command{
		Use:   "list <account-id>",
		Short: "List posts by an account, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				posts, err := e.PostsBy(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, posts)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete a post (comments and notifications are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				return e.DeletePost(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

// NewCommentCommand creates the comment command group.
func NewCommentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Manage comments",
	}

	create := &cobra.Command{
		Use:   "create <actor-id> <post-id> <content>",
		Short: "Comment on a post and notify its owner",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				comment, n, err := e.CommentOnPost(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"comment": comment, "notification": n})
			})
		},
	}

	like := &cobra.Command{
		Use:   "like <actor-id> <comment-id>",
		Short: "Like a comment and notify its owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				n, err := e.LikeComment(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, n)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <post-id>",
		Short: "List comments on a post, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				comments, err := e.CommentsOn(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, comments)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete a comment and detach it from its post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				return e.DeleteComment(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(create, like, list, del)
	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Print an entity by id",
		Long: `Print an entity by id.

Kind is one of account, post, comment, notification (or the table name).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return err
			}
			return rootOpts.withEngine(cmd, func(ctx context.Context, e *social.Engine) error {
				doc, err := e.Store().FindByID(ctx, kind, args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, doc)
			})
		},
	}
}

// parseAssignments turns field=value pairs into update fields.
func parseAssignments(pairs []string) (model.Fields, error) {
	fields := make(model.Fields, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: want field=value", p)
		}
		fields[name] = value
	}
	return fields, nil
}
