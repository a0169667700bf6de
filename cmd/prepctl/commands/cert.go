package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/prepctl/internal/certs"
	"github.com/systmms/prepctl/internal/config"
	perrors "github.com/systmms/prepctl/internal/errors"
	"gopkg.in/yaml.v3"
)

// domainFile is the optional per-domain metadata file read from the working
// directory when creating a hosted zone.
const domainFile = "domain.yaml"

type domainMeta struct {
	Comment string `yaml:"comment"`
}

func NewCertCommand(cfg *config.Config) *cobra.Command {
	var (
		domain     string
		sans       []string
		createZone bool
		region     string
	)

	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Request a DNS-validated TLS certificate",
		Long: `Request an ACM certificate for a domain and its wildcard, create the DNS
validation records in Route53, and wait for issuance.

The certificate always covers '<domain>' and '*.<domain>'; add further names
with --san. With --create-zone a hosted zone is created first (its comment
read from an optional domain.yaml); otherwise the zone must already exist.

Validation can outlive the wait: a timeout is reported but the command still
exits cleanly, and ACM keeps validating in the background.

Examples:
  # Certificate for an existing zone
  prepctl cert --domain example.com

  # New domain, zone included
  prepctl cert --domain example.com --create-zone

  # Extra subject alternative names
  prepctl cert --domain example.com --san api.example.org`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if domain == "" {
				return perrors.UserError{
					Message:    "Domain is required",
					Suggestion: "Use --domain <name> to specify the domain to certify",
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

			req := certs.Request{
				Domain:                  domain,
				SubjectAlternativeNames: sans,
				CreateZone:              createZone,
			}
			if createZone {
				comment, err := readZoneComment(domainFile)
				if err != nil {
					return err
				}
				req.ZoneComment = comment
			}

			issuer := certs.NewIssuer(clients.ACM, clients.Route53, cfg.Logger)
			return issuer.Run(ctx, req)
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "Domain to certify (required)")
	cmd.Flags().StringArrayVar(&sans, "san", nil, "Additional subject alternative name (repeatable)")
	cmd.Flags().BoolVar(&createZone, "create-zone", false, "Create the hosted zone before requesting")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (overrides config file)")

	_ = cmd.MarkFlagRequired("domain")

	return cmd
}

// readZoneComment reads the zone comment from the domain metadata file. A
// missing file is fine; a malformed one is not.
func readZoneComment(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", perrors.UserError{
			Message:    "Failed to read " + path,
			Details:    err.Error(),
			Suggestion: "Check file permissions",
			Err:        err,
		}
	}

	var meta domainMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return "", perrors.ConfigError{
			Field:      "path",
			Value:      path,
			Message:    "invalid YAML: " + err.Error(),
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}
	return meta.Comment, nil
}
