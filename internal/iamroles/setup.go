// Package iamroles provisions the IAM role and policy that let Kubernetes
// workloads assume AWS identity through the cluster's OIDC provider.
package iamroles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	perrors "github.com/systmms/prepctl/internal/errors"
	"github.com/systmms/prepctl/internal/logging"
)

// IAMAPI is the slice of the IAM client the setup needs.
type IAMAPI interface {
	ListOpenIDConnectProviders(ctx context.Context, params *iam.ListOpenIDConnectProvidersInput, optFns ...func(*iam.Options)) (*iam.ListOpenIDConnectProvidersOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	UpdateAssumeRolePolicy(ctx context.Context, params *iam.UpdateAssumeRolePolicyInput, optFns ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error)
	CreatePolicy(ctx context.Context, params *iam.CreatePolicyInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyOutput, error)
	GetPolicy(ctx context.Context, params *iam.GetPolicyInput, optFns ...func(*iam.Options)) (*iam.GetPolicyOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
}

// STSAPI resolves the caller's account.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

var (
	_ IAMAPI = (*iam.Client)(nil)
	_ STSAPI = (*sts.Client)(nil)
)

// policyDocument is the subset of the IAM policy grammar this tool emits.
type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string                 `json:"Sid,omitempty"`
	Effect    string                 `json:"Effect"`
	Principal map[string]string      `json:"Principal,omitempty"`
	Action    interface{}            `json:"Action"`
	Resource  interface{}            `json:"Resource,omitempty"`
	Condition map[string]interface{} `json:"Condition,omitempty"`
}

// Setup drives the role/policy provisioning.
type Setup struct {
	iam    IAMAPI
	sts    STSAPI
	logger *logging.Logger
}

// New wires a setup from its clients.
func New(iamClient IAMAPI, stsClient STSAPI, logger *logging.Logger) *Setup {
	return &Setup{iam: iamClient, sts: stsClient, logger: logger}
}

// Request names the role and policy: "<company>-<env>-k8s-services-roles"
// and "<company>-<env>-k8s-services-policy". Region scopes the Secrets
// Manager resource ARN in the policy.
type Request struct {
	Company string
	Env     string
	Region  string
}

// Result reports what was provisioned.
type Result struct {
	RoleName    string
	PolicyArn   string
	ProviderArn string
}

// Run provisions (or updates) the federated role, the services policy, and
// their attachment. Both role and policy creation are idempotent: an
// existing role gets its trust policy refreshed, an existing policy is
// looked up by ARN.
func (s *Setup) Run(ctx context.Context, req Request) (*Result, error) {
	accountID, err := s.accountID(ctx)
	if err != nil {
		return nil, err
	}

	providerArn, providerURL, err := s.oidcProvider(ctx)
	if err != nil {
		return nil, err
	}

	roleName := fmt.Sprintf("%s-%s-k8s-services-roles", req.Company, req.Env)
	policyName := fmt.Sprintf("%s-%s-k8s-services-policy", req.Company, req.Env)

	if err := s.createOrUpdateRole(ctx, roleName, providerArn, providerURL); err != nil {
		return nil, err
	}

	policyArn, err := s.createOrFetchPolicy(ctx, policyName, accountID, req.Region)
	if err != nil {
		return nil, err
	}

	_, err = s.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		return nil, perrors.AWSError("iam", "AttachRolePolicy", err)
	}

	return &Result{RoleName: roleName, PolicyArn: policyArn, ProviderArn: providerArn}, nil
}

func (s *Setup) accountID(ctx context.Context) (string, error) {
	out, err := s.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", perrors.AWSError("sts", "GetCallerIdentity", err)
	}
	return aws.ToString(out.Account), nil
}

// oidcProvider returns the account's first OIDC provider. The provider URL
// is everything after the first "/" of the ARN, which is how the trust
// policy condition keys are spelled.
func (s *Setup) oidcProvider(ctx context.Context) (arn, url string, err error) {
	out, err := s.iam.ListOpenIDConnectProviders(ctx, &iam.ListOpenIDConnectProvidersInput{})
	if err != nil {
		return "", "", perrors.AWSError("iam", "ListOpenIDConnectProviders", err)
	}
	if len(out.OpenIDConnectProviderList) == 0 {
		return "", "", perrors.UserError{
			Message:    "No OIDC providers found in this account",
			Suggestion: "Associate an OIDC provider with your cluster before creating the service role",
		}
	}

	arn = aws.ToString(out.OpenIDConnectProviderList[0].Arn)
	parts := strings.Split(arn, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("unexpected OIDC provider ARN format: %s", arn)
	}
	return arn, strings.Join(parts[1:], "/"), nil
}

func (s *Setup) createOrUpdateRole(ctx context.Context, roleName, providerArn, providerURL string) error {
	trust, err := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Federated": providerArn},
			Action:    "sts:AssumeRoleWithWebIdentity",
			Condition: map[string]interface{}{
				"StringEquals": map[string]string{
					providerURL + ":aud": "sts.amazonaws.com",
				},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode trust policy: %w", err)
	}

	_, err = s.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(string(trust)),
	})
	if err == nil {
		s.logger.Info("role %s created", roleName)
		return nil
	}
	if !isEntityExists(err) {
		return perrors.AWSError("iam", "CreateRole", err)
	}

	_, err = s.iam.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyDocument: aws.String(string(trust)),
	})
	if err != nil {
		return perrors.AWSError("iam", "UpdateAssumeRolePolicy", err)
	}
	s.logger.Info("role %s already exists, trust policy updated", roleName)
	return nil
}

func (s *Setup) createOrFetchPolicy(ctx context.Context, policyName, accountID, region string) (string, error) {
	doc, err := json.Marshal(servicesPolicy(accountID, region))
	if err != nil {
		return "", fmt.Errorf("failed to encode services policy: %w", err)
	}

	out, err := s.iam.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(string(doc)),
	})
	if err == nil {
		return aws.ToString(out.Policy.Arn), nil
	}
	if !isEntityExists(err) {
		return "", perrors.AWSError("iam", "CreatePolicy", err)
	}

	existing, err := s.iam.GetPolicy(ctx, &iam.GetPolicyInput{
		PolicyArn: aws.String(fmt.Sprintf("arn:aws:iam::%s:policy/%s", accountID, policyName)),
	})
	if err != nil {
		return "", perrors.AWSError("iam", "GetPolicy", err)
	}
	return aws.ToString(existing.Policy.Arn), nil
}

// servicesPolicy grants what the Kubernetes services need: secret reads,
// S3 access, and Kafka cluster operations.
func servicesPolicy(accountID, region string) policyDocument {
	if region == "" {
		region = "us-east-1"
	}
	return policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Sid:    "SecretManager",
				Effect: "Allow",
				Action: []string{
					"secretsmanager:GetResourcePolicy",
					"secretsmanager:GetSecretValue",
					"secretsmanager:DescribeSecret",
					"secretsmanager:ListSecretVersionIds",
					"secretsmanager:GetRandomPassword",
					"secretsmanager:ListSecrets",
				},
				Resource: fmt.Sprintf("arn:aws:secretsmanager:%s:%s:secret:*", region, accountID),
			},
			{
				Sid:      "ListObjectsInBucket",
				Effect:   "Allow",
				Action:   "s3:ListBucket",
				Resource: "arn:aws:s3:::*",
			},
			{
				Sid:      "AllObjectActions",
				Effect:   "Allow",
				Action:   "s3:*Object",
				Resource: "arn:aws:s3:::*/*",
			},
			{
				Sid:      "AllowMSKAll",
				Effect:   "Allow",
				Action:   "kafka-cluster:*",
				Resource: "*",
			},
			{
				Effect:   "Allow",
				Action:   []string{"s3:*", "s3-object-lambda:*"},
				Resource: "*",
			},
		},
	}
}

func isEntityExists(err error) bool {
	var exists *iamtypes.EntityAlreadyExistsException
	return errors.As(err, &exists)
}
