package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/prepctl/internal/config"
	perrors "github.com/systmms/prepctl/internal/errors"
	"github.com/systmms/prepctl/internal/tfbackend"
)

func NewTFBackendCommand(cfg *config.Config) *cobra.Command {
	var (
		env    string
		region string
	)

	cmd := &cobra.Command{
		Use:   "tf-backend",
		Short: "Provision the Terraform remote-state backend",
		Long: `Create the versioned S3 bucket and the DynamoDB lock table Terraform
needs for remote state, then print the backend stanza to paste into your
configuration.

The bucket is named '<accountName>-<env>-tf-backend' (accountName from
prepctl.yaml); the lock table 'terraform-state-lock-dynamo' is shared by
all environments. Both are left untouched when they already exist.

Examples:
  prepctl tf-backend --env staging --region eu-west-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if env == "" {
				return perrors.UserError{
					Message:    "Environment name is required",
					Suggestion: "Use --env <name> to specify the target environment",
				}
			}

			if err := cfg.Load(); err != nil {
				return err
			}

			ctx := cmd.Context()
			clients, err := newClients(ctx, cfg, region)
			if err != nil {
				return err
			}

			provisioner := tfbackend.New(clients.S3, clients.DynamoDB, cfg.Logger)
			stanza, err := provisioner.Run(ctx, tfbackend.Request{
				Env:         env,
				Region:      clients.Region,
				AccountName: cfg.Settings.AccountName,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), stanza)
			return nil
		},
	}

	cmd.Flags().StringVar(&env, "env", "", "Environment name (required)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (overrides config file)")

	_ = cmd.MarkFlagRequired("env")

	return cmd
}
