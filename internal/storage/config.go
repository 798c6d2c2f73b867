package storage

import (
	"fmt"
	"strings"
)

// Config holds the connection parameters consumed by a Session. It mirrors
// the DB_* environment variables.
type Config struct {
	// Driver selects the dialect: "mysql" (default), "postgres", "mssql", "sqlite".
	Driver   string
	Host     string
	User     string
	Password string
	Database string
	Port     int
	// Params are appended to the driver DSN (e.g. "parseTime": "true").
	Params map[string]string
}

// DriverOrDefault returns Driver, falling back to "mysql".
func (c Config) DriverOrDefault() string {
	if d := strings.TrimSpace(c.Driver); d != "" {
		return strings.ToLower(d)
	}
	return "mysql"
}

// Missing lists the required parameters that are unset, in the order they
// are checked. Embedded databases only need Database.
func (c Config) Missing(embedded bool) []string {
	var out []string
	if embedded {
		if strings.TrimSpace(c.Database) == "" {
			out = append(out, "DB_NAME")
		}
		return out
	}
	if strings.TrimSpace(c.Host) == "" {
		out = append(out, "DB_HOST")
	}
	if strings.TrimSpace(c.User) == "" {
		out = append(out, "DB_USER")
	}
	if c.Password == "" {
		out = append(out, "DB_PASS")
	}
	if strings.TrimSpace(c.Database) == "" {
		out = append(out, "DB_NAME")
	}
	if c.Port <= 0 {
		out = append(out, "DB_PORT")
	}
	return out
}

// Validate resolves the dialect and checks every required parameter. The
// returned error wraps ErrConfiguration or ErrUnknownDialect.
func (c Config) Validate() error {
	d, err := LookupDialect(c.DriverOrDefault())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if missing := c.Missing(d.Embedded); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// Redacted returns a log-safe description of the target.
func (c Config) Redacted() string {
	if c.Host == "" {
		return fmt.Sprintf("%s:%s", c.DriverOrDefault(), c.Database)
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.DriverOrDefault(), c.User, c.Host, c.Port, c.Database)
}
