package errors

import (
	"fmt"
	"strings"
)

// UserError is an error meant to be shown to the operator with enough
// context to act on it.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError reports a problem with prepctl.yaml or a flag value.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// AWSError wraps an AWS SDK error with the service and operation that
// produced it, plus a suggestion for the common failure classes.
func AWSError(service, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", service, operation),
		Suggestion: awsSuggestion(service, err),
		Err:        err,
	}
}

func awsSuggestion(service string, err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "no EC2 IMDS role found") ||
		strings.Contains(errStr, "failed to retrieve credentials") ||
		strings.Contains(errStr, "get credentials") {
		return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
	}
	if strings.Contains(errStr, "AccessDenied") || strings.Contains(errStr, "UnauthorizedOperation") {
		return fmt.Sprintf("Check IAM permissions for %s", service)
	}
	if strings.Contains(errStr, "ResourceNotFoundException") {
		return "Verify the resource name and region"
	}
	if strings.Contains(errStr, "ThrottlingException") || strings.Contains(errStr, "Rate exceeded") {
		return "AWS rate limit exceeded. Wait a moment and try again"
	}
	if strings.Contains(errStr, "ExpiredToken") {
		return "Your AWS session has expired. Re-authenticate and try again"
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and the configured region/endpoint"
	}

	return ""
}
