package config

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	envProjectID          = "JOURNAI_PROJECT_ID"
	envProjectIDFallback  = "GCP_PROJECT_ID"
	envRegion             = "JOURNAI_REGION"
	envZone               = "JOURNAI_ZONE"
	envAppName            = "JOURNAI_APP_NAME"
	envDBInstance         = "JOURNAI_DB_INSTANCE"
	envDBName             = "JOURNAI_DB_NAME"
	envDBUser             = "JOURNAI_DB_USER"
	envDBPassword         = "JOURNAI_DB_PASSWORD"
	envDomain             = "JOURNAI_DOMAIN"
	envEnvironment        = "JOURNAI_ENVIRONMENT"
	envAdminEmail         = "JOURNAI_ADMIN_EMAIL"
	envEnableAdminConsole = "JOURNAI_ENABLE_ADMIN_CONSOLE"
	envSupabaseRef        = "SUPABASE_PROJECT_REF"
	envSupabaseURL        = "SUPABASE_URL"
	envSupabaseAnonKey    = "SUPABASE_ANON_KEY"
	envLocalBackend       = "JOURNAI_LOCAL_BACKEND"
	envAPIEnableWait      = "JOURNAI_API_ENABLE_WAIT"
	envSkipBuild          = "JOURNAI_SKIP_BUILD"
)

const (
	defaultRegion        = "us-central1"
	defaultZone          = "us-central1-a"
	defaultAppName       = "journai"
	defaultDBInstance    = "journai-db"
	defaultDBName        = "journai"
	defaultDBUser        = "journai_app"
	defaultEnvironment   = "production"
	defaultAPIEnableWait = 30 * time.Second
	generatedPasswordLen = 24
)

// Regions offered when prompting; any valid region may still be supplied via env.
var Regions = []string{
	"us-central1",
	"us-east1",
	"us-west1",
	"europe-west1",
	"europe-west3",
	"asia-northeast1",
	"australia-southeast1",
}

var projectIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{4,28}[a-z0-9]$`)

// ProvisioningConfig is resolved once before any provisioning step runs and is
// read-only afterwards.
type ProvisioningConfig struct {
	ProjectID          string `validate:"required,gcpproject"`
	Region             string `validate:"required"`
	Zone               string `validate:"required"`
	AppName            string `validate:"required,hostname_rfc1123"`
	DBInstanceName     string `validate:"required"`
	DBName             string `validate:"required"`
	DBUser             string `validate:"required"`
	DBPassword         string `validate:"required"`
	Domain             string `validate:"omitempty,fqdn"`
	Environment        string `validate:"oneof=production staging development"`
	AdminEmail         string `validate:"omitempty,email"`
	EnableAdminConsole bool
	SupabaseProjectRef string
	SupabaseURL        string `validate:"omitempty,url"`
	SupabaseAnonKey    string
	LocalBackend       bool
	APIEnableWait      time.Duration `validate:"gte=0"`
	SkipBuild          bool
	WorkDir            string
	// PasswordGenerated is set when DBPassword was not supplied.
	PasswordGenerated bool
}

// ConnectionName returns the Cloud SQL instance connection name.
func (c ProvisioningConfig) ConnectionName() string {
	return fmt.Sprintf("%s:%s:%s", c.ProjectID, c.Region, c.DBInstanceName)
}

// AppEngineServiceAccount returns the App Engine default service account email.
func (c ProvisioningConfig) AppEngineServiceAccount() string {
	return c.ProjectID + "@appspot.gserviceaccount.com"
}

// Overrides carries command-line values that take precedence over the environment.
type Overrides struct {
	APIEnableWait *time.Duration
	SkipBuild     bool
	WorkDir       string
}

// ResolveProvisioning assembles the configuration from the environment (and the
// work dir's .env file if present), asking prompter for missing values. A nil prompter means
// non-interactive: missing required values are errors and optional ones use defaults.
func ResolveProvisioning(ctx context.Context, prompter Prompter, overrides Overrides) (ProvisioningConfig, error) {
	if err := loadDotEnvIfPresent(dotEnvPath(overrides.WorkDir)); err != nil {
		return ProvisioningConfig{}, err
	}

	cfg := ProvisioningConfig{
		AppName:        defaultAppName,
		DBInstanceName: defaultDBInstance,
		DBName:         defaultDBName,
		DBUser:         defaultDBUser,
		Environment:    defaultEnvironment,
		APIEnableWait:  defaultAPIEnableWait,
		WorkDir:        ".",
	}

	if value, ok := lookupTrimmed(envProjectID); ok {
		cfg.ProjectID = value
	} else if value, ok := lookupTrimmed(envProjectIDFallback); ok {
		cfg.ProjectID = value
	}
	region, regionSet := lookupTrimmed(envRegion)
	cfg.Region = region
	if value, ok := lookupTrimmed(envZone); ok {
		cfg.Zone = value
	}
	stringFromEnv(&cfg.AppName, envAppName)
	stringFromEnv(&cfg.DBInstanceName, envDBInstance)
	stringFromEnv(&cfg.DBName, envDBName)
	stringFromEnv(&cfg.DBUser, envDBUser)
	stringFromEnv(&cfg.DBPassword, envDBPassword)
	domain, domainSet := lookupTrimmed(envDomain)
	cfg.Domain = domain
	stringFromEnv(&cfg.Environment, envEnvironment)
	stringFromEnv(&cfg.AdminEmail, envAdminEmail)
	stringFromEnv(&cfg.SupabaseProjectRef, envSupabaseRef)
	stringFromEnv(&cfg.SupabaseURL, envSupabaseURL)
	stringFromEnv(&cfg.SupabaseAnonKey, envSupabaseAnonKey)

	var err error
	if cfg.EnableAdminConsole, err = boolFromEnv(envEnableAdminConsole); err != nil {
		return ProvisioningConfig{}, err
	}
	if cfg.LocalBackend, err = boolFromEnv(envLocalBackend); err != nil {
		return ProvisioningConfig{}, err
	}
	if cfg.SkipBuild, err = boolFromEnv(envSkipBuild); err != nil {
		return ProvisioningConfig{}, err
	}
	if value, ok := lookupTrimmed(envAPIEnableWait); ok {
		wait, err := time.ParseDuration(value)
		if err != nil {
			return ProvisioningConfig{}, fmt.Errorf("invalid %s: %w", envAPIEnableWait, err)
		}
		if wait < 0 {
			return ProvisioningConfig{}, fmt.Errorf("%s cannot be negative", envAPIEnableWait)
		}
		cfg.APIEnableWait = wait
	}

	if prompter != nil {
		if err := promptMissing(ctx, prompter, &cfg, regionSet, domainSet); err != nil {
			return ProvisioningConfig{}, err
		}
	}

	if cfg.ProjectID == "" {
		return ProvisioningConfig{}, fmt.Errorf("%s is required", envProjectID)
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if cfg.Zone == "" {
		if cfg.Region == defaultRegion {
			cfg.Zone = defaultZone
		} else {
			cfg.Zone = cfg.Region + "-a"
		}
	}
	if cfg.DBPassword == "" {
		password, err := generatePassword(generatedPasswordLen)
		if err != nil {
			return ProvisioningConfig{}, fmt.Errorf("generate database password: %w", err)
		}
		cfg.DBPassword = password
		cfg.PasswordGenerated = true
	}

	if overrides.APIEnableWait != nil {
		cfg.APIEnableWait = *overrides.APIEnableWait
	}
	if overrides.SkipBuild {
		cfg.SkipBuild = true
	}
	if overrides.WorkDir != "" {
		cfg.WorkDir = overrides.WorkDir
	}

	if err := Validate(cfg); err != nil {
		return ProvisioningConfig{}, err
	}
	return cfg, nil
}

func promptMissing(ctx context.Context, prompter Prompter, cfg *ProvisioningConfig, regionSet, domainSet bool) error {
	if cfg.ProjectID == "" {
		value, err := prompter.Ask(ctx, Question{
			Title:       "GCP Project ID",
			Description: "6-30 lowercase letters, digits or hyphens; created if it does not exist",
			Placeholder: "journai-prod",
			Validate:    validateProjectID,
		})
		if err != nil {
			return fmt.Errorf("prompt project id: %w", err)
		}
		cfg.ProjectID = strings.TrimSpace(value)
	}

	if !regionSet {
		value, err := prompter.Ask(ctx, Question{
			Title:   "Region",
			Default: defaultRegion,
			Options: Regions,
		})
		if err != nil {
			return fmt.Errorf("prompt region: %w", err)
		}
		cfg.Region = strings.TrimSpace(value)
	}

	if !domainSet {
		value, err := prompter.Ask(ctx, Question{
			Title:       "Custom domain (optional)",
			Description: "Leave empty to use the default appspot.com address",
			Placeholder: "app.journai.travel",
			Optional:    true,
		})
		if err != nil {
			return fmt.Errorf("prompt domain: %w", err)
		}
		cfg.Domain = strings.TrimSpace(value)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("gcpproject", func(fl validator.FieldLevel) bool {
		return projectIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks field constraints on a resolved configuration.
func Validate(cfg ProvisioningConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func validateProjectID(value string) error {
	if !projectIDPattern.MatchString(strings.TrimSpace(value)) {
		return errors.New("project id must be 6-30 lowercase letters, digits or hyphens and start with a letter")
	}
	return nil
}

func generatePassword(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n], nil
}

func stringFromEnv(dst *string, key string) {
	if value, ok := lookupTrimmed(key); ok {
		*dst = value
	}
}

func boolFromEnv(key string) (bool, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

// lookupTrimmed treats blank values as unset.
func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// dotEnvPath returns the .env file inside dir, or in the current directory
// when dir is empty.
func dotEnvPath(dir string) string {
	if dir == "" {
		return ".env"
	}
	return filepath.Join(dir, ".env")
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
