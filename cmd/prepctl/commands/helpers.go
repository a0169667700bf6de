package commands

import (
	"context"

	"github.com/systmms/prepctl/internal/awsutil"
	"github.com/systmms/prepctl/internal/config"
)

// newClients builds the AWS service clients from the loaded settings. The
// region flag, when set on a command, takes precedence over the config file.
func newClients(ctx context.Context, cfg *config.Config, region string) (*awsutil.Clients, error) {
	if region == "" {
		region = cfg.Settings.Region
	}
	return awsutil.New(ctx, awsutil.Options{
		Region:          region,
		Endpoint:        cfg.Settings.Endpoint,
		AccessKeyID:     cfg.Settings.AccessKeyID,
		SecretAccessKey: cfg.Settings.SecretAccessKey,
	})
}
