package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an explicit variable source.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadStruct fills the env-tagged fields of v, descending into nested structs.
// Tags: env (name), envAlt (fallback name), default, required:"true".
func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fv, lookup); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		value, ok := lookupNonEmpty(lookup, name, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", name)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}
		if err := setField(fv, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
	}
	return nil
}

// lookupNonEmpty returns the first non-empty value among names.
func lookupNonEmpty(lookup LookupFunc, names ...string) (string, bool) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if v, ok := lookup(n); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(splitList(value)))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidationError lists every problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed:\n  - " + strings.Join(e.Problems, "\n  - ")
}

func (e *ValidationError) addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks that the configuration is usable. The returned error is a
// *ValidationError naming every problem, not just the first.
func (c *Config) Validate() error {
	v := &ValidationError{}

	if err := c.Engine().Ages.Validate(); err != nil {
		v.addf("LT_MIN_AGE (%d) and LT_MAX_AGE (%d): %v", c.Pipeline.MinAge, c.Pipeline.MaxAge, err)
	}
	if c.Pipeline.LxTolerance < 0 {
		v.addf("LT_LX_TOLERANCE must be non-negative")
	}

	if c.Paths.OutputDir == "" {
		v.addf("OUTPUT_DIR must not be empty")
	}
	if c.Paths.DownloadDir == "" {
		v.addf("DOWNLOAD_DIR must not be empty")
	}

	if c.Fetch.Enabled && (c.Fetch.Email == "" || c.Fetch.Password == "") {
		v.addf("FETCH_ENABLED is true but HMD_EMAIL or HMD_PASSWORD is empty")
	}
	if c.Fetch.Timeout <= 0 {
		v.addf("FETCH_TIMEOUT must be positive")
	}

	if c.Database.Enabled() {
		switch {
		case c.Database.MaxConns <= 0:
			v.addf("DB_MAX_CONNS must be positive")
		case c.Database.MaxConns < c.Database.MinConns:
			v.addf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
		if c.Database.MinConns < 0 {
			v.addf("DB_MIN_CONNS must be non-negative")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		v.addf("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		v.addf("SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		v.addf("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Run.MaxConcurrent <= 0 {
		v.addf("RUN_MAX_CONCURRENT must be positive")
	}
	if c.Run.MaxWaitTime <= 0 {
		v.addf("RUN_MAX_WAIT_TIME must be positive")
	}
	if c.Run.Timeout <= 0 {
		v.addf("RUN_TIMEOUT must be positive")
	}

	if !oneOf(c.Logging.Level, "debug", "info", "warn", "error") {
		v.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if !oneOf(c.Logging.Format, "text", "json") {
		v.addf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

func oneOf(s string, options ...string) bool {
	for _, o := range options {
		if strings.EqualFold(s, o) {
			return true
		}
	}
	return false
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and passwords are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Pipeline: {Ages: %d-%d, IncludeEdgeData: %v, StandardiseLx: %v}, ",
		c.Pipeline.MinAge, c.Pipeline.MaxAge, c.Pipeline.IncludeEdgeData, c.Pipeline.StandardiseLx))
	b.WriteString(fmt.Sprintf("Paths: {Output: %q, Download: %q, Sources: %q}, ",
		c.Paths.OutputDir, c.Paths.DownloadDir, c.Paths.SourcesFile))
	b.WriteString(fmt.Sprintf("Fetch: {Enabled: %v, Email: %q, Password: %s}, ",
		c.Fetch.Enabled, c.Fetch.Email, mask(c.Fetch.Password)))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d}, ", mask(c.Database.URL), c.Database.MaxConns))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, APIKeys: %d}, ", c.Server.Host, c.Server.Port, len(c.Server.APIKeys)))
	b.WriteString(fmt.Sprintf("Run: {MaxConcurrent: %d, Timeout: %v}, ", c.Run.MaxConcurrent, c.Run.Timeout))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
