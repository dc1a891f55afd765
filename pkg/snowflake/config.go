package snowflake

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
	sf "github.com/snowflakedb/gosnowflake"
)

// ApplicationName is reported to Snowflake for every session.
const ApplicationName = "snowkeeper"

var authenticators = map[string]sf.AuthType{
	"":                      sf.AuthTypeSnowflake,
	"snowflake":             sf.AuthTypeSnowflake,
	"externalbrowser":       sf.AuthTypeExternalBrowser,
	"oauth":                 sf.AuthTypeOAuth,
	"snowflake_jwt":         sf.AuthTypeJwt,
	"username_password_mfa": sf.AuthTypeUsernamePasswordMFA,
}

// ConnectionConfig is everything needed to open a session. It is a value
// type: derive variations with the With* methods rather than mutating a
// shared instance.
type ConnectionConfig struct {
	Account       string
	User          string
	Password      string
	Role          string
	Warehouse     string
	Database      string
	Authenticator string
}

// WithRole returns a copy of c using role.
func (c ConnectionConfig) WithRole(role string) ConnectionConfig {
	c.Role = role
	return c
}

// Validate checks the required fields are present.
func (c ConnectionConfig) Validate() error {
	var missing []string
	for name, value := range map[string]string{
		"account":   c.Account,
		"user":      c.User,
		"role":      c.Role,
		"warehouse": c.Warehouse,
		"database":  c.Database,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return errors.Errorf("missing connection settings: %s", strings.Join(missing, ", "))
	}

	if _, ok := authenticators[strings.ToLower(c.Authenticator)]; !ok {
		return errors.Errorf("unsupported authenticator: %s", c.Authenticator)
	}

	return nil
}

func (c ConnectionConfig) driverConfig() (*sf.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &sf.Config{
		Account:       c.Account,
		User:          c.User,
		Password:      c.Password,
		Role:          c.Role,
		Warehouse:     c.Warehouse,
		Database:      c.Database,
		Authenticator: authenticators[strings.ToLower(c.Authenticator)],
		Application:   ApplicationName,
	}, nil
}
