package logging

import (
	"fmt"
	"testing"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "generated password", input: "Xk29dLqWn4Tz"},
		{name: "empty value", input: ""},
		{name: "value with format verbs", input: "p%s%d!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Secret(tt.input).String(); got != "[REDACTED]" {
				t.Errorf("Secret(%q).String() = %q, want [REDACTED]", tt.input, got)
			}
			if got := Secret(tt.input).GoString(); got != "[REDACTED]" {
				t.Errorf("Secret(%q).GoString() = %q, want [REDACTED]", tt.input, got)
			}
		})
	}
}

func TestSecretThroughFormatting(t *testing.T) {
	s := Secret("s3cr3t")
	for _, verb := range []string{"%s", "%v", "%#v"} {
		out := fmt.Sprintf(verb, s)
		if out != "[REDACTED]" {
			t.Errorf("fmt.Sprintf(%q, Secret) = %q, want [REDACTED]", verb, out)
		}
	}
}

func TestLoggerConstruction(t *testing.T) {
	if New(false, true) == nil {
		t.Error("New(false, true) returned nil")
	}
	if New(true, false) == nil {
		t.Error("New(true, false) returned nil")
	}
}
