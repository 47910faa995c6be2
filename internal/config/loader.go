package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves one environment variable.
type LookupFunc func(name string) (string, bool)

// Load reads configuration from the process environment, applies defaults,
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with a custom variable source. Every malformed variable
// is reported, not just the first.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	l := loader{lookup: lookup}
	l.fill(reflect.ValueOf(cfg).Elem())
	if err := errors.Join(l.errs...); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

type loader struct {
	lookup LookupFunc
	errs   []error
}

var durationType = reflect.TypeOf(time.Duration(0))

// fill walks nested structs and sets every field tagged with env.
// Tags: env (primary name), envAlt (fallback name), default, required.
func (l *loader) fill(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			l.fill(fv)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := l.get(name, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				l.errs = append(l.errs, fmt.Errorf("%s is required", name))
				continue
			}
			raw = field.Tag.Get("default")
		}
		if raw == "" {
			continue
		}
		if err := setValue(fv, raw); err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s=%q: %w", name, raw, err))
		}
	}
}

// get returns the first non-empty value of name or alt.
func (l *loader) get(name, alt string) (string, bool) {
	if v, ok := l.lookup(name); ok && v != "" {
		return v, true
	}
	if alt != "" {
		if v, ok := l.lookup(alt); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func setValue(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration")
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer")
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid number")
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean")
		}
		fv.SetBool(b)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported list type %s", fv.Type())
		}
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		fv.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

// problems collects validation messages for one pass.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var p problems
	c.validateServer(&p)
	c.validateGrid(&p)
	c.validateStorage(&p)

	if c.Rate.Enabled {
		if c.Rate.RequestsPerMinute <= 0 {
			p.addf("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
		}
		if c.Rate.MutationLimit <= 0 {
			p.addf("RATE_LIMIT_MUTATIONS must be positive when rate limiting is enabled")
		}
	}
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		p.addf("REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one key or disable auth")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		p.addf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

func (c *Config) validateServer(p *problems) {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		p.addf("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.RequestTimeout < 0 {
		p.addf("server timeouts must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		p.addf("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
}

func (c *Config) validateGrid(p *problems) {
	g := c.Grid
	switch strings.ToLower(g.Backend) {
	case BackendMemory, BackendPersisted:
	case BackendPostgres:
		db := c.Database
		if db.URL == "" {
			p.addf("DATABASE_URL is required when GRID_BACKEND=postgres")
		}
		if db.MaxConns <= 0 {
			p.addf("DB_MAX_CONNS must be positive")
		}
		if db.MinConns < 0 {
			p.addf("DB_MIN_CONNS must be non-negative")
		}
		if db.MaxConns < db.MinConns {
			p.addf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)
		}
		if g.Table == "" {
			p.addf("GRID_TABLE is required when GRID_BACKEND=postgres")
		}
	default:
		p.addf("GRID_BACKEND (%q) must be one of: memory, persisted, postgres", g.Backend)
	}

	if g.DefaultPageSize <= 0 {
		p.addf("GRID_DEFAULT_PAGE_SIZE must be positive")
	}
	if g.MaxPageSize < g.DefaultPageSize {
		p.addf("GRID_MAX_PAGE_SIZE (%d) must be >= GRID_DEFAULT_PAGE_SIZE (%d)", g.MaxPageSize, g.DefaultPageSize)
	}
	if g.SearchDebounce < 0 {
		p.addf("GRID_SEARCH_DEBOUNCE must be non-negative")
	}
	if g.FetchTimeout <= 0 {
		p.addf("GRID_FETCH_TIMEOUT must be positive")
	}
	if g.CommitTimeout <= 0 {
		p.addf("GRID_COMMIT_TIMEOUT must be positive")
	}
}

// validateStorage only applies to the persisted backend.
func (c *Config) validateStorage(p *problems) {
	if strings.ToLower(c.Grid.Backend) != BackendPersisted {
		return
	}
	s := c.Storage
	switch strings.ToLower(s.Mode) {
	case "local":
		if s.Path == "" {
			p.addf("STORAGE_PATH is required when STORAGE_MODE=local")
		}
	case "memory":
	case "s3":
		if s.S3Bucket == "" {
			p.addf("S3_BUCKET is required when STORAGE_MODE=s3")
		}
		if s.S3AccessKeyID == "" || s.S3SecretAccessKey == "" {
			p.addf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when STORAGE_MODE=s3")
		}
	default:
		p.addf("STORAGE_MODE (%q) must be one of: local, memory, s3", s.Mode)
	}
}

// String returns a summary safe for logs. Database URLs and storage secrets
// are masked.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Config{Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Grid: {Backend: %q, Table: %q, DefaultPageSize: %d, MaxPageSize: %d}, ",
		c.Grid.Backend, c.Grid.Table, c.Grid.DefaultPageSize, c.Grid.MaxPageSize)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		mask(c.Database.URL), c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Storage: {Mode: %q, Path: %q, Bucket: %q, Secret: %s}, ",
		c.Storage.Mode, c.Storage.Path, c.Storage.S3Bucket, mask(c.Storage.S3SecretAccessKey))
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d, Mutations: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.MutationLimit)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q, Seq: %v}}",
		c.Logging.Level, c.Logging.Format, c.Logging.SeqURL != "")
	return b.String()
}

// LogValue renders the config as a masked slog group.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Server.Addr()),
		slog.String("backend", c.Grid.Backend),
		slog.String("database_url", mask(c.Database.URL)),
		slog.String("storage_mode", c.Storage.Mode),
		slog.Int("max_page_size", c.Grid.MaxPageSize),
		slog.Bool("rate_limit", c.Rate.Enabled),
		slog.Bool("api_key_auth", c.Security.RequireAPIKey),
		slog.Bool("seq", c.Logging.SeqURL != ""),
	)
}

func mask(secret string) string {
	if secret == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
