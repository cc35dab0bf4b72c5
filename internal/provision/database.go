package provision

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/journai/journai-ops/internal/command"
	"github.com/journai/journai-ops/internal/secrets"
)

const databaseVersion = "POSTGRES_15"

func (p *Provisioner) ensureSQLInstance(ctx context.Context, _ Facts) Outcome {
	tier := "db-f1-micro"
	if p.cfg.Environment == "production" {
		tier = "db-g1-small"
	}
	create := p.cli.Cmd("sql", "instances", "create", p.cfg.DBInstanceName,
		"--database-version="+databaseVersion,
		"--tier="+tier,
		"--region="+p.cfg.Region,
		"--storage-type=SSD",
		"--storage-size=10GB",
		"--storage-auto-increase",
		"--backup-start-time=03:00",
		"--availability-type=zonal",
	)
	create.InheritOutput = true

	return p.Ensure(ctx, Resource{
		Kind:        "Cloud SQL instance",
		Name:        p.cfg.DBInstanceName,
		Describe:    p.cli.Cmd("sql", "instances", "describe", p.cfg.DBInstanceName, "--format=value(name)"),
		Create:      []command.Command{create},
		Criticality: Hard,
	})
}

func (p *Provisioner) ensureDatabase(ctx context.Context, _ Facts) Outcome {
	return p.Ensure(ctx, Resource{
		Kind:        "database",
		Name:        p.cfg.DBName,
		Describe:    p.cli.Cmd("sql", "databases", "describe", p.cfg.DBName, "--instance="+p.cfg.DBInstanceName),
		Create:      []command.Command{p.cli.Cmd("sql", "databases", "create", p.cfg.DBName, "--instance="+p.cfg.DBInstanceName)},
		Criticality: Soft,
	})
}

// ensureDatabaseUser creates the application user, or resets its password when it
// already exists so the stored secret matches the database.
func (p *Provisioner) ensureDatabaseUser(ctx context.Context, _ Facts) Outcome {
	create := p.cli.Cmd("sql", "users", "create", p.cfg.DBUser,
		"--instance="+p.cfg.DBInstanceName,
		"--password="+p.cfg.DBPassword,
	)
	create.Redact = []string{p.cfg.DBPassword}

	setPassword := p.cli.Cmd("sql", "users", "set-password", p.cfg.DBUser,
		"--instance="+p.cfg.DBInstanceName,
		"--password="+p.cfg.DBPassword,
	)
	setPassword.Redact = []string{p.cfg.DBPassword}

	return p.Ensure(ctx, Resource{
		Kind:        "database user",
		Name:        p.cfg.DBUser,
		Describe:    p.cli.Cmd("sql", "users", "describe", p.cfg.DBUser, "--instance="+p.cfg.DBInstanceName),
		Create:      []command.Command{create},
		OnPresent:   []command.Command{setPassword},
		Criticality: Soft,
	})
}

// secretRecords lists the secrets written for the application. Names are
// deterministic so IAM grants can be applied without re-reading them.
func (p *Provisioner) secretRecords() []secrets.Record {
	records := []secrets.Record{
		{Name: p.name("db-password"), Value: p.cfg.DBPassword},
		{Name: p.name("db-connection-name"), Value: p.cfg.ConnectionName()},
		{Name: p.name("database-url"), Value: p.databaseURL()},
	}
	backendURL, anonKey := p.backend()
	if backendURL != "" {
		records = append(records, secrets.Record{Name: p.name("supabase-url"), Value: backendURL})
	}
	if anonKey != "" {
		records = append(records, secrets.Record{Name: p.name("supabase-anon-key"), Value: anonKey})
	}
	if p.cfg.AdminEmail != "" {
		records = append(records, secrets.Record{Name: p.name("admin-email"), Value: p.cfg.AdminEmail})
	}
	return records
}

// databaseURL is a libpq URL that connects through the Cloud SQL unix socket.
func (p *Provisioner) databaseURL() string {
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(p.cfg.DBUser, p.cfg.DBPassword),
		Host:     "localhost",
		Path:     "/" + p.cfg.DBName,
		RawQuery: "host=/cloudsql/" + p.cfg.ConnectionName(),
	}
	return u.String()
}

func (p *Provisioner) storeSecrets(ctx context.Context, _ Facts) Outcome {
	records := p.secretRecords()
	failures := p.secrets.StoreAll(ctx, records)
	if len(failures) > 0 {
		names := make([]string, 0, len(failures))
		for _, f := range failures {
			names = append(names, f.Name)
		}
		p.out.Warning("failed to store %d of %d secrets", len(failures), len(records))
		return FailedSoft(fmt.Sprintf("secrets not stored: %s", strings.Join(names, ", ")))
	}
	p.out.Success("stored %d secrets", len(records))
	if p.cfg.PasswordGenerated {
		p.note("The database password was generated; read it with: gcloud secrets versions access latest --secret=%s", p.name("db-password"))
	}
	return Succeeded()
}

func (p *Provisioner) grantIAM(ctx context.Context, _ Facts) Outcome {
	member := "serviceAccount:" + p.cfg.AppEngineServiceAccount()

	outcomes := []Outcome{
		p.Apply(ctx, "grant Cloud SQL client role", Soft, p.cli.Global(
			"projects", "add-iam-policy-binding", p.cfg.ProjectID,
			"--member="+member,
			"--role=roles/cloudsql.client",
			"--condition=None",
			"--quiet",
		)),
	}
	for _, record := range p.secretRecords() {
		if err := p.secrets.GrantAccessor(ctx, record.Name, member); err != nil {
			outcomes = append(outcomes, p.fail(Soft, fmt.Sprintf("grant access to %s", record.Name), err))
		}
	}
	return combine(outcomes...)
}
