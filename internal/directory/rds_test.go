package directory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/prepctl/internal/directory"
)

type fakeRDS struct {
	pages []*rds.DescribeDBInstancesOutput
	err   error
	calls int
}

func (f *fakeRDS) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

func TestListMapsInstanceFields(t *testing.T) {
	client := &fakeRDS{pages: []*rds.DescribeDBInstancesOutput{{
		DBInstances: []types.DBInstance{
			{
				DBInstanceIdentifier: aws.String("prod-billing-1"),
				Engine:               aws.String("postgres"),
				DBName:               aws.String("billing"),
				Endpoint: &types.Endpoint{
					Address: aws.String("prod-billing-1.abc.us-east-1.rds.amazonaws.com"),
					Port:    aws.Int32(5432),
				},
			},
			{
				DBInstanceIdentifier:                  aws.String("prod-billing-1-replica"),
				Engine:                                aws.String("postgres"),
				DBName:                                aws.String("billing"),
				ReadReplicaSourceDBInstanceIdentifier: aws.String("prod-billing-1"),
			},
		},
	}}}

	instances, err := directory.NewRDS(client).List(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 2)

	primary := instances[0]
	assert.Equal(t, "prod-billing-1", primary.Identifier)
	assert.Equal(t, "postgres", primary.Engine)
	assert.Equal(t, "billing", primary.DatabaseName)
	assert.Equal(t, "prod-billing-1.abc.us-east-1.rds.amazonaws.com", primary.Host)
	assert.Equal(t, int32(5432), primary.Port)
	assert.False(t, primary.IsReplica())

	replica := instances[1]
	assert.True(t, replica.IsReplica())
	assert.Equal(t, "prod-billing-1", replica.ReplicaSource)
	assert.Empty(t, replica.Host, "endpoint may be absent while provisioning")
}

func TestListFollowsPagination(t *testing.T) {
	client := &fakeRDS{pages: []*rds.DescribeDBInstancesOutput{
		{
			DBInstances: []types.DBInstance{{DBInstanceIdentifier: aws.String("prod-billing-1")}},
			Marker:      aws.String("page-2"),
		},
		{
			DBInstances: []types.DBInstance{{DBInstanceIdentifier: aws.String("prod-core-2")}},
		},
	}}

	instances, err := directory.NewRDS(client).List(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "prod-core-2", instances[1].Identifier)
}

func TestListFailureIsFatal(t *testing.T) {
	client := &fakeRDS{err: errors.New("api error AccessDenied")}

	_, err := directory.NewRDS(client).List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DescribeDBInstances")
}
