package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/prepctl/internal/config"
	perrors "github.com/systmms/prepctl/internal/errors"
	"github.com/systmms/prepctl/internal/iamroles"
)

func NewIAMRoleCommand(cfg *config.Config) *cobra.Command {
	var (
		company string
		env     string
		region  string
	)

	cmd := &cobra.Command{
		Use:   "iam-role",
		Short: "Create the IAM role for Kubernetes workload identity",
		Long: `Create (or refresh) the IAM role and policy that Kubernetes service
accounts assume through the account's OIDC identity provider.

The role '<company>-<env>-k8s-services-roles' trusts the first OIDC provider
registered in the account, and the attached policy
'<company>-<env>-k8s-services-policy' grants read access to Secrets Manager,
S3 and MSK. Re-running updates the trust policy and reuses the policy.

Examples:
  prepctl iam-role --company acme --env staging`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if company == "" {
				return perrors.UserError{
					Message:    "Company name is required",
					Suggestion: "Use --company <name> to prefix the role and policy names",
				}
			}
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

			setup := iamroles.New(clients.IAM, clients.STS, cfg.Logger)
			result, err := setup.Run(ctx, iamroles.Request{
				Company: company,
				Env:     env,
				Region:  clients.Region,
			})
			if err != nil {
				return err
			}

			cfg.Logger.Info("role %s ready with policy %s", result.RoleName, result.PolicyArn)
			return nil
		},
	}

	cmd.Flags().StringVar(&company, "company", "", "Company name (required)")
	cmd.Flags().StringVar(&env, "env", "", "Environment name (required)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (overrides config file)")

	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("env")

	return cmd
}
