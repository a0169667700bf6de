// Package directory enumerates the managed database instances of the
// account, the "instance directory" the rotation driver walks.
package directory

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/rds"
	perrors "github.com/systmms/prepctl/internal/errors"
)

// Instance describes one database instance. Read fresh on every run, never
// mutated, never persisted.
type Instance struct {
	// Identifier is the instance identifier, "<env>-<service>-...".
	Identifier string

	// Engine is the database engine name, e.g. postgres.
	Engine string

	// DatabaseName is the logical database created with the instance.
	DatabaseName string

	// Host and Port locate the instance endpoint. Empty/zero while the
	// instance is still being provisioned.
	Host string
	Port int32

	// ReplicaSource is the identifier of the replication source when this
	// instance is a read replica, empty otherwise.
	ReplicaSource string
}

// IsReplica reports whether the instance is a read replica.
func (i Instance) IsReplica() bool {
	return i.ReplicaSource != ""
}

// RDSAPI is the slice of the RDS client the directory needs.
type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

var _ RDSAPI = (*rds.Client)(nil)

// RDSDirectory lists instances from the account's RDS fleet.
type RDSDirectory struct {
	client RDSAPI
}

// NewRDS creates a directory backed by the given RDS client.
func NewRDS(client RDSAPI) *RDSDirectory {
	return &RDSDirectory{client: client}
}

// List returns every database instance in the account/region. A listing
// failure is fatal to the caller: per-instance processing depends on the
// complete list.
func (d *RDSDirectory) List(ctx context.Context) ([]Instance, error) {
	var instances []Instance

	input := &rds.DescribeDBInstancesInput{}
	for {
		out, err := d.client.DescribeDBInstances(ctx, input)
		if err != nil {
			return nil, perrors.AWSError("rds", "DescribeDBInstances", err)
		}

		for _, db := range out.DBInstances {
			inst := Instance{
				Identifier:    strValue(db.DBInstanceIdentifier),
				Engine:        strValue(db.Engine),
				DatabaseName:  strValue(db.DBName),
				ReplicaSource: strValue(db.ReadReplicaSourceDBInstanceIdentifier),
			}
			if db.Endpoint != nil {
				inst.Host = strValue(db.Endpoint.Address)
				if db.Endpoint.Port != nil {
					inst.Port = *db.Endpoint.Port
				}
			}
			instances = append(instances, inst)
		}

		if out.Marker == nil || *out.Marker == "" {
			break
		}
		input.Marker = out.Marker
	}

	return instances, nil
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
