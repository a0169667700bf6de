// Package tfbackend provisions the Terraform remote-state backend: a
// versioned S3 bucket for state and a DynamoDB table for state locking.
package tfbackend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	perrors "github.com/systmms/prepctl/internal/errors"
	"github.com/systmms/prepctl/internal/logging"
)

// LockTableName is the shared DynamoDB lock table. One table serves every
// environment; the bucket is per-environment.
const LockTableName = "terraform-state-lock-dynamo"

const backendTemplate = `
terraform {
  backend "s3" {
    bucket         = "{{ .Bucket }}"
    dynamodb_table = "{{ .Table }}"
    key            = "{{ .Key }}"
    region         = "{{ .Region }}"
    encrypt        = true
  }
}
`

// S3API is the slice of the S3 client the provisioner needs.
type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketVersioning(ctx context.Context, params *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
}

// DynamoDBAPI is the slice of the DynamoDB client the provisioner needs.
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var (
	_ S3API       = (*s3.Client)(nil)
	_ DynamoDBAPI = (*dynamodb.Client)(nil)
)

// Provisioner creates the backend resources.
type Provisioner struct {
	s3     S3API
	ddb    DynamoDBAPI
	logger *logging.Logger
}

// New wires a provisioner from its clients.
func New(s3Client S3API, ddbClient DynamoDBAPI, logger *logging.Logger) *Provisioner {
	return &Provisioner{s3: s3Client, ddb: ddbClient, logger: logger}
}

// Request describes the backend to provision.
type Request struct {
	Env         string
	Region      string
	AccountName string
}

// BucketName is "<account>-<env>-tf-backend".
func BucketName(accountName, env string) string {
	return fmt.Sprintf("%s-%s-tf-backend", accountName, env)
}

// Run creates the bucket, enables versioning, creates the lock table, and
// returns the backend stanza to paste into Terraform. Resources that
// already exist are reported and left alone.
func (p *Provisioner) Run(ctx context.Context, req Request) (string, error) {
	bucket := BucketName(req.AccountName, req.Env)

	if err := p.createBucket(ctx, bucket, req.Region); err != nil {
		return "", err
	}
	if err := p.enableVersioning(ctx, bucket); err != nil {
		return "", err
	}
	if err := p.createLockTable(ctx); err != nil {
		return "", err
	}

	return RenderBackendConfig(bucket, req.Env, req.Region)
}

func (p *Provisioner) createBucket(ctx context.Context, bucket, region string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 rejects an explicit location constraint.
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}

	_, err := p.s3.CreateBucket(ctx, input)
	if err != nil {
		if isBucketExists(err) {
			p.logger.Warn("S3 bucket '%s' already exists, leaving it as is", bucket)
			return nil
		}
		return perrors.AWSError("s3", "CreateBucket", err)
	}
	p.logger.Info("S3 bucket '%s' created successfully", bucket)
	return nil
}

func (p *Provisioner) enableVersioning(ctx context.Context, bucket string) error {
	_, err := p.s3.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(bucket),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		return perrors.AWSError("s3", "PutBucketVersioning", err)
	}
	p.logger.Info("versioning enabled on S3 bucket '%s'", bucket)
	return nil
}

func (p *Provisioner) createLockTable(ctx context.Context) error {
	_, err := p.ddb.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(LockTableName),
		AttributeDefinitions: []ddbtypes.AttributeDefinition{{
			AttributeName: aws.String("LockID"),
			AttributeType: ddbtypes.ScalarAttributeTypeS,
		}},
		KeySchema: []ddbtypes.KeySchemaElement{{
			AttributeName: aws.String("LockID"),
			KeyType:       ddbtypes.KeyTypeHash,
		}},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *ddbtypes.ResourceInUseException
		if errors.As(err, &inUse) {
			p.logger.Warn("DynamoDB table '%s' already exists, leaving it as is", LockTableName)
			return nil
		}
		return perrors.AWSError("dynamodb", "CreateTable", err)
	}
	p.logger.Info("DynamoDB table '%s' created successfully", LockTableName)
	return nil
}

// RenderBackendConfig renders the terraform backend stanza for the
// provisioned resources.
func RenderBackendConfig(bucket, env, region string) (string, error) {
	tmpl, err := template.New("backend").Parse(backendTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse backend template: %w", err)
	}

	var buf strings.Builder
	err = tmpl.Execute(&buf, map[string]string{
		"Bucket": bucket,
		"Table":  LockTableName,
		"Key":    env + ".tfstate",
		"Region": region,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render backend template: %w", err)
	}
	return buf.String(), nil
}

func isBucketExists(err error) bool {
	var owned *s3types.BucketAlreadyOwnedByYou
	var exists *s3types.BucketAlreadyExists
	return errors.As(err, &owned) || errors.As(err, &exists)
}
