package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestUserErrorFormatting(t *testing.T) {
	err := UserError{
		Message:    "Failed to list database instances",
		Suggestion: "Check IAM permissions for rds:DescribeDBInstances",
		Details:    "operation error RDS: DescribeDBInstances",
	}

	got := err.Error()
	for _, want := range []string{
		"Failed to list database instances",
		"Details: operation error RDS",
		"Try: Check IAM permissions",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("UserError.Error() = %q, missing %q", got, want)
		}
	}
}

func TestUserErrorFallsBackToWrapped(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	err := UserError{Err: inner}

	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("UserError.Error() = %q, want wrapped message", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("UserError should unwrap to the inner error")
	}
}

func TestConfigErrorFormatting(t *testing.T) {
	err := ConfigError{
		Field:      "passwordLength",
		Value:      0,
		Message:    "must be positive",
		Suggestion: "Set passwordLength to 12 or leave it unset",
	}

	got := err.Error()
	if !strings.Contains(got, "field 'passwordLength'") {
		t.Errorf("ConfigError.Error() = %q, missing field name", got)
	}
	if !strings.Contains(got, "must be positive") {
		t.Errorf("ConfigError.Error() = %q, missing message", got)
	}
}

func TestAWSErrorSuggestions(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHint string
	}{
		{
			name:     "access denied",
			err:      errors.New("api error AccessDenied: not authorized"),
			wantHint: "IAM permissions",
		},
		{
			name:     "throttled",
			err:      errors.New("api error ThrottlingException: Rate exceeded"),
			wantHint: "rate limit",
		},
		{
			name:     "not found",
			err:      errors.New("api error ResourceNotFoundException"),
			wantHint: "Verify the resource name",
		},
		{
			name:     "network",
			err:      errors.New("dial tcp: connection refused"),
			wantHint: "Unable to connect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := AWSError("secretsmanager", "GetSecretValue", tt.err)
			if !strings.Contains(wrapped.Error(), tt.wantHint) {
				t.Errorf("AWSError() = %q, missing hint %q", wrapped.Error(), tt.wantHint)
			}
			if !errors.Is(wrapped, tt.err) {
				t.Error("AWSError should wrap the original error")
			}
		})
	}
}
