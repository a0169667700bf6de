// Package rotation implements the credential rotation driver: walk the
// database fleet, create or rotate the per-service login on each eligible
// instance, and record the new password in the secret store.
package rotation

import (
	"context"

	"github.com/systmms/prepctl/internal/config"
	"github.com/systmms/prepctl/internal/database"
	"github.com/systmms/prepctl/internal/directory"
	"github.com/systmms/prepctl/internal/logging"
	"github.com/systmms/prepctl/internal/secure"
)

// DBPasswordKey is the mapping key the rotated password is stored under.
const DBPasswordKey = "DB_PASSWORD"

// Directory lists the database instances to process.
type Directory interface {
	List(ctx context.Context) ([]directory.Instance, error)
}

// SecretStore is the slice of the secret store the driver needs.
type SecretStore interface {
	GetString(ctx context.Context, name string) (string, error)
	SetMappingKey(ctx context.Context, name, key, value string) error
}

// RoleManager performs role management on one connected instance.
type RoleManager interface {
	RoleExists(ctx context.Context, role string) (bool, error)
	CreateRole(ctx context.Context, role, password string) error
	AlterRolePassword(ctx context.Context, role, password string) error
	GrantDatabase(ctx context.Context, role string) error
	Close() error
}

// Connector opens a connection to an instance. Failing to connect is a
// per-instance skip, never a run abort.
type Connector func(ctx context.Context, info database.ConnInfo) (RoleManager, error)

// PostgresConnector is the production Connector.
func PostgresConnector(ctx context.Context, info database.ConnInfo) (RoleManager, error) {
	return database.Connect(ctx, info)
}

// Status classifies what happened to one instance.
type Status string

const (
	// StatusSkipped: a filter or a non-fatal error excluded the instance
	// before any mutation.
	StatusSkipped Status = "skipped"
	// StatusChecked: connectivity verified in check-only mode.
	StatusChecked Status = "checked"
	// StatusCreated: the service role was created and its password stored.
	StatusCreated Status = "created"
	// StatusRotated: the existing role's password was replaced and stored.
	StatusRotated Status = "rotated"
	// StatusUnchanged: the role already exists and force was not set.
	StatusUnchanged Status = "unchanged"
	// StatusFailed: a mutation-path error; the instance may be left with a
	// role whose password is not recorded in the secret store.
	StatusFailed Status = "failed"
)

// Outcome is the typed per-instance result. Callers distinguish non-fatal
// skips from failures without parsing log text.
type Outcome struct {
	Instance string
	Status   Status
	Reason   string
	Err      error
}

// Options control a run.
type Options struct {
	// CheckOnly stops after the connectivity check; nothing is mutated.
	CheckOnly bool
	// Force rotates the password even when the role already exists.
	Force bool
}

// Driver runs the rotation workflow. All collaborators are injected; the
// driver owns no connections or clients itself.
type Driver struct {
	directory Directory
	secrets   SecretStore
	connect   Connector
	logger    *logging.Logger
	settings  config.Settings
}

// NewDriver wires a driver from its collaborators.
func NewDriver(dir Directory, secrets SecretStore, connect Connector, logger *logging.Logger, settings config.Settings) *Driver {
	return &Driver{
		directory: dir,
		secrets:   secrets,
		connect:   connect,
		logger:    logger,
		settings:  settings,
	}
}

// Run processes every instance in the directory, one at a time, and returns
// one Outcome per instance. The only fatal error is a failed listing; every
// per-instance failure is logged and the run continues.
func (d *Driver) Run(ctx context.Context, opts Options) ([]Outcome, error) {
	instances, err := d.directory.List(ctx)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("discovered %d database instance(s)", len(instances))

	outcomes := make([]Outcome, 0, len(instances))
	for _, inst := range instances {
		out := d.processInstance(ctx, inst, opts)
		switch out.Status {
		case StatusSkipped:
			d.logger.Warn("%s: %s", out.Instance, out.Reason)
		case StatusFailed:
			d.logger.Error("%s: %s: %v", out.Instance, out.Reason, out.Err)
		default:
			d.logger.Info("%s: %s", out.Instance, out.Reason)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (d *Driver) processInstance(ctx context.Context, inst directory.Instance, opts Options) Outcome {
	if inst.IsReplica() {
		return Outcome{
			Instance: inst.Identifier,
			Status:   StatusSkipped,
			Reason:   "read replica of " + inst.ReplicaSource + ", never rotated",
		}
	}
	if !d.settings.EngineAllowed(inst.Engine) {
		return Outcome{
			Instance: inst.Identifier,
			Status:   StatusSkipped,
			Reason:   "engine " + inst.Engine + " is not in the allow-list",
		}
	}

	env, service, err := deriveEnvService(inst.Identifier)
	if err != nil {
		return Outcome{Instance: inst.Identifier, Status: StatusSkipped, Reason: err.Error()}
	}

	adminPassword, err := d.secrets.GetString(ctx, adminSecretName(env, service))
	if err != nil {
		return Outcome{
			Instance: inst.Identifier,
			Status:   StatusSkipped,
			Reason:   "admin secret " + adminSecretName(env, service) + " unavailable: " + err.Error(),
		}
	}

	// Hold the admin password in protected memory until the connect.
	adminBuf := secure.NewBufferFromString(adminPassword)
	defer adminBuf.Destroy()

	conn, err := d.openConn(ctx, inst, adminBuf)
	if err != nil {
		return Outcome{
			Instance: inst.Identifier,
			Status:   StatusSkipped,
			Reason:   "connection failed, not retried: " + err.Error(),
		}
	}
	defer func() { _ = conn.Close() }()

	if opts.CheckOnly {
		return Outcome{
			Instance: inst.Identifier,
			Status:   StatusChecked,
			Reason:   "connected to " + inst.DatabaseName + " as " + d.settings.AdminUser,
		}
	}

	return d.rotateRole(ctx, conn, inst, env, service, opts.Force)
}

func (d *Driver) openConn(ctx context.Context, inst directory.Instance, adminBuf *secure.Buffer) (RoleManager, error) {
	password, err := adminBuf.String()
	if err != nil {
		return nil, err
	}
	return d.connect(ctx, database.ConnInfo{
		Host:     inst.Host,
		Port:     inst.Port,
		Database: inst.DatabaseName,
		User:     d.settings.AdminUser,
		Password: password,
	})
}

// rotateRole performs the mutation sequence for a connected instance. A
// role mutation failure means the secret write is never attempted; a secret
// write failure after a mutation is the accepted inconsistency window — the
// role's new password is not recorded anywhere, and the outcome says so.
func (d *Driver) rotateRole(ctx context.Context, conn RoleManager, inst directory.Instance, env, service string, force bool) Outcome {
	role := serviceRoleName(service)

	exists, err := conn.RoleExists(ctx, role)
	if err != nil {
		return Outcome{Instance: inst.Identifier, Status: StatusFailed, Reason: "role catalog query failed", Err: err}
	}

	if exists && !force {
		return Outcome{
			Instance: inst.Identifier,
			Status:   StatusUnchanged,
			Reason:   "role " + role + " already exists, skipping",
		}
	}

	password, err := GeneratePassword(d.settings.PasswordLength)
	if err != nil {
		return Outcome{Instance: inst.Identifier, Status: StatusFailed, Reason: "password generation failed", Err: err}
	}
	d.logger.Debug("generated password for %s: %s", role, logging.Secret(password))

	status := StatusCreated
	if exists {
		status = StatusRotated
		if err := conn.AlterRolePassword(ctx, role, password); err != nil {
			return Outcome{Instance: inst.Identifier, Status: StatusFailed, Reason: "password update for " + role + " failed", Err: err}
		}
	} else {
		if err := conn.CreateRole(ctx, role, password); err != nil {
			return Outcome{Instance: inst.Identifier, Status: StatusFailed, Reason: "creation of " + role + " failed", Err: err}
		}
	}

	if err := conn.GrantDatabase(ctx, role); err != nil {
		return Outcome{Instance: inst.Identifier, Status: StatusFailed, Reason: "grant on " + inst.DatabaseName + " failed", Err: err}
	}

	secretName := serviceSecretName(env, service)
	if err := d.secrets.SetMappingKey(ctx, secretName, DBPasswordKey, password); err != nil {
		return Outcome{
			Instance: inst.Identifier,
			Status:   StatusFailed,
			Reason:   "role " + role + " mutated but secret " + secretName + " not written; password is unrecorded",
			Err:      err,
		}
	}

	verb := "created"
	if status == StatusRotated {
		verb = "rotated"
	}
	return Outcome{
		Instance: inst.Identifier,
		Status:   status,
		Reason:   "role " + role + " " + verb + ", password stored in " + secretName,
	}
}
