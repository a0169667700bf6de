package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/prepctl/internal/config"
	"github.com/systmms/prepctl/internal/directory"
	"github.com/systmms/prepctl/internal/rotation"
	"github.com/systmms/prepctl/internal/secretstore"
)

func NewDBCommand(cfg *config.Config) *cobra.Command {
	var (
		checkOnly bool
		force     bool
		region    string
	)

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Create or rotate service database credentials",
		Long: `Walk every RDS instance in the account, create the per-service database
role where it is missing, and store the generated password in Secrets
Manager.

Instances are matched to services by naming convention: an instance named
'<env>-<service>-...' is served by role 'service.<service>', authenticated
with the admin secret '<env>-<service>-db-admin-Password', and its rotated
password lands in the '<env>/<service>' secret under DB_PASSWORD.

Read replicas and instances with unsupported engines are skipped. A failure
on one instance never stops the run; check the per-instance log lines.

Examples:
  # Create missing roles, leave existing ones alone
  prepctl db

  # Verify admin connectivity only, mutate nothing
  prepctl db --check

  # Rotate passwords for existing roles too
  prepctl db --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			ctx := cmd.Context()
			clients, err := newClients(ctx, cfg, region)
			if err != nil {
				return err
			}

			driver := rotation.NewDriver(
				directory.NewRDS(clients.RDS),
				secretstore.New(clients.Secrets),
				rotation.PostgresConnector,
				cfg.Logger,
				cfg.Settings,
			)

			outcomes, err := driver.Run(ctx, rotation.Options{
				CheckOnly: checkOnly,
				Force:     force,
			})
			if err != nil {
				return fmt.Errorf("failed to list database instances: %w", err)
			}

			counts := map[rotation.Status]int{}
			for _, out := range outcomes {
				counts[out.Status]++
			}
			cfg.Logger.Info("%d instance(s) processed: %d created, %d rotated, %d unchanged, %d checked, %d skipped, %d failed",
				len(outcomes),
				counts[rotation.StatusCreated],
				counts[rotation.StatusRotated],
				counts[rotation.StatusUnchanged],
				counts[rotation.StatusChecked],
				counts[rotation.StatusSkipped],
				counts[rotation.StatusFailed],
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Verify admin connectivity only, mutate nothing")
	cmd.Flags().BoolVar(&force, "force", false, "Rotate passwords for roles that already exist")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (overrides config file)")

	return cmd
}
