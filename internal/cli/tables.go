package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacentio/murmur/internal/config"
	"github.com/jacentio/murmur/store/dynamo"
)

// NewTablesCommand creates the tables command group.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Manage DynamoDB tables",
	}

	var wait time.Duration
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the entity and unique-constraint tables",
		Long: `Create the entity and unique-constraint tables.

Entity tables are created with the secondary indexes used by queries and a
stream carrying old images for the reconciler. Existing tables are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := dynamoConfig(rootOpts)
			if err != nil {
				return err
			}
			client, err := cfg.DynamoClient(contextOf(cmd))
			if err != nil {
				return err
			}
			created, err := dynamo.CreateTables(contextOf(cmd), client, cfg.TableConfig(), wait)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"created": created})
		},
	}
	create.Flags().DurationVar(&wait, "wait", 2*time.Minute, "how long to wait for each table to become active (0 to skip)")

	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete the entity and unique-constraint tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := dynamoConfig(rootOpts)
			if err != nil {
				return err
			}
			client, err := cfg.DynamoClient(contextOf(cmd))
			if err != nil {
				return err
			}
			return dynamo.DeleteTables(contextOf(cmd), client, cfg.TableConfig())
		},
	}

	cmd.AddCommand(create, del)
	return cmd
}

func dynamoConfig(o *RootOptions) (config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.RequireBackend(config.BackendDynamo); err != nil {
		return config.Config{}, fmt.Errorf("tables %w", err)
	}
	return cfg, nil
}
