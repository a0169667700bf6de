package rotation

import (
	"fmt"
	"strings"
)

// rolePrefix forms the per-service database login, "service.<service>".
const rolePrefix = "service."

// deriveEnvService splits an instance identifier of the form
// "<env>-<service>-..." into its environment and service components. An
// identifier with fewer than two components is malformed; the caller skips
// the instance rather than failing the run.
func deriveEnvService(identifier string) (env, service string, err error) {
	parts := strings.Split(identifier, "-")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("malformed instance identifier %q: want <env>-<service>-...", identifier)
	}
	return parts[0], parts[1], nil
}

// adminSecretName is the secret holding the admin password for an instance.
func adminSecretName(env, service string) string {
	return fmt.Sprintf("%s-%s-db-admin-Password", env, service)
}

// serviceSecretName is the secret holding the rotated service credential.
// Core services keep the bare "<env>/<service>" name; everything else gets
// a "-service" suffix.
func serviceSecretName(env, service string) string {
	suffix := "-service"
	if strings.HasPrefix(strings.ToLower(service), "core") {
		suffix = ""
	}
	return fmt.Sprintf("%s/%s%s", env, service, suffix)
}

// serviceRoleName is the database login created or rotated for a service.
func serviceRoleName(service string) string {
	return rolePrefix + service
}
