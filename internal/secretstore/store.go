// Package secretstore wraps AWS Secrets Manager as the named secret store
// used by the prepctl workflows: retrieve-by-name, and a JSON mapping
// convenience that merges keys instead of overwriting the whole object.
package secretstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	perrors "github.com/systmms/prepctl/internal/errors"
)

// NotFoundError reports that a named secret does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("secret '%s' not found", e.Name)
}

// IsNotFound reports whether err means the secret does not exist.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// SecretsAPI is the slice of the Secrets Manager client the store needs.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error)
}

var _ SecretsAPI = (*secretsmanager.Client)(nil)

// Store reads and writes named secrets.
type Store struct {
	client SecretsAPI
}

// New creates a store backed by the given Secrets Manager client.
func New(client SecretsAPI) *Store {
	return &Store{client: client}
}

// GetString returns the secret's string value. A missing secret yields a
// *NotFoundError.
func (s *Store) GetString(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		if isResourceNotFound(err) {
			return "", &NotFoundError{Name: name}
		}
		return "", perrors.AWSError("secretsmanager", "GetSecretValue", err)
	}

	switch {
	case out.SecretString != nil:
		return *out.SecretString, nil
	case out.SecretBinary != nil:
		return string(out.SecretBinary), nil
	default:
		return "", fmt.Errorf("secret '%s' has no value", name)
	}
}

// GetMapping returns the secret's value decoded as a JSON object of string
// keys to string values. A missing secret yields a *NotFoundError.
func (s *Store) GetMapping(ctx context.Context, name string) (map[string]string, error) {
	raw, err := s.GetString(ctx, name)
	if err != nil {
		return nil, err
	}

	mapping := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, fmt.Errorf("secret '%s' is not a JSON string mapping: %w", name, err)
	}
	return mapping, nil
}

// SetMappingKey sets one key in the secret's JSON mapping, preserving every
// other key (read-merge-write). A missing secret starts from an empty
// mapping and is created; an existing one is updated in place.
func (s *Store) SetMappingKey(ctx context.Context, name, key, value string) error {
	mapping, err := s.GetMapping(ctx, name)
	exists := true
	if err != nil {
		if !IsNotFound(err) {
			return err
		}
		mapping = map[string]string{}
		exists = false
	}

	mapping[key] = value
	encoded, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to encode secret '%s': %w", name, err)
	}

	if exists {
		_, err = s.client.UpdateSecret(ctx, &secretsmanager.UpdateSecretInput{
			SecretId:     aws.String(name),
			SecretString: aws.String(string(encoded)),
		})
		if err != nil {
			return perrors.AWSError("secretsmanager", "UpdateSecret", err)
		}
		return nil
	}

	_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(string(encoded)),
	})
	if err != nil {
		return perrors.AWSError("secretsmanager", "CreateSecret", err)
	}
	return nil
}

func isResourceNotFound(err error) bool {
	var nf *types.ResourceNotFoundException
	return errors.As(err, &nf)
}
