package config

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/consts"
	"gopkg.in/yaml.v3"
)

// DefaultYAML is the configuration used when no snowkeeper.yaml exists. It is
// also what `snowkeeper init` writes to a new project.
//
//go:embed embed/snowkeeper.yaml
var DefaultYAML []byte

type (
	// Config represents the project configuration for a snowkeeper deployment.
	Config struct {
		// Environments is the fixed set of environment codes deployments target.
		Environments []string `yaml:"environments"`

		// OrderFile is the path of the file listing versioned script folders
		// in the order they must be applied.
		OrderFile string `yaml:"order_file"`

		// OrderStripSegments is the number of leading path segments (below the
		// root folder) ignored when matching scripts against the order file.
		OrderStripSegments int `yaml:"order_strip_segments"`

		// Subtree is a pattern selecting the scripts considered in database mode.
		Subtree string `yaml:"subtree"`

		// AccountSubtree is a pattern selecting the scripts considered in account mode.
		AccountSubtree string `yaml:"account_subtree"`

		// PostDeployment selects account level scripts that are applied on every
		// account mode run from the full repository listing.
		PostDeployment string `yaml:"post_deployment"`

		// AdminRole is the role used for the warehouse resizing connection.
		AdminRole string `yaml:"admin_role"`

		Metadata Metadata `yaml:"metadata"`
		DevOps   DevOps   `yaml:"devops"`

		// Databases maps a logical database to its per environment names.
		Databases map[string]Database `yaml:"databases"`

		// Warehouses maps environment -> warehouse alias -> concrete warehouse.
		Warehouses map[string]map[string]string `yaml:"warehouses"`

		// Stages maps a logical stage to its per environment reference.
		Stages map[string]map[string]string `yaml:"stages"`

		// ExcludeFiles lists script file names that are never rewritten.
		ExcludeFiles []string `yaml:"exclude_files"`

		// WarehouseSizes maps environment -> warehouse size used during deployment.
		WarehouseSizes map[string]string `yaml:"warehouse_sizes"`
	}

	// Database describes a logical database.
	Database struct {
		// Environments maps environment code -> concrete database name.
		Environments map[string]string `yaml:"environments"`

		// Preserve lists names that are never rewritten.
		Preserve []string `yaml:"preserve,omitempty"`
	}

	// Metadata holds the default audit table locations.
	Metadata struct {
		Schema             string `yaml:"schema"`
		ChangeHistoryTable string `yaml:"change_history_table"`
		BuildInfoTable     string `yaml:"build_info_table"`
	}

	// DevOps configures the version control diff service.
	DevOps struct {
		URL        string `yaml:"url"`
		APIVersion string `yaml:"api_version"`
	}
)

// LoadConfig parses a project configuration from the provided io.Reader.
//
// Missing sections are filled with defaults and the result is validated.
//
// Example:
//
//	cfg, err := config.LoadConfig(strings.NewReader(`
//	environments: [dev, prd]
//	warehouse_sizes: {prd: LARGE}
//	`))
//	if err != nil {
//		panic(err)
//	}
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal snowkeeper config")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfigFile loads a project configuration from the specified file path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadConfig(f)
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	cfg, err := LoadConfig(bytes.NewReader(DefaultYAML))
	if err != nil {
		panic(errors.Wrap(err, "embedded configuration is invalid"))
	}

	return cfg
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	known := func(env string) bool { return slices.Contains(c.Environments, env) }

	if c.OrderStripSegments < 0 {
		return errors.Errorf("order_strip_segments must not be negative: %d", c.OrderStripSegments)
	}

	for name, pattern := range map[string]string{
		"subtree":         c.Subtree,
		"account_subtree": c.AccountSubtree,
		"post_deployment": c.PostDeployment,
	} {
		if _, err := regexp.Compile(pattern); err != nil {
			return errors.Wrapf(err, "invalid %s pattern", name)
		}
	}

	for _, name := range sortedKeys(c.Databases) {
		for env := range c.Databases[name].Environments {
			if !known(env) {
				return errors.Errorf("database %s references unknown environment %q", name, env)
			}
		}
	}

	for _, name := range sortedKeys(c.Stages) {
		for env := range c.Stages[name] {
			if !known(env) {
				return errors.Errorf("stage %s references unknown environment %q", name, env)
			}
		}
	}

	for _, env := range sortedKeys(c.WarehouseSizes) {
		if !known(env) {
			return errors.Errorf("warehouse_sizes references unknown environment %q", env)
		}
	}

	// A warehouse mapping must be a projection, otherwise rewriting a script
	// twice would not give the same result as rewriting it once.
	for _, env := range sortedKeys(c.Warehouses) {
		if !known(env) {
			return errors.Errorf("warehouses references unknown environment %q", env)
		}

		mapping := c.Warehouses[env]
		for _, alias := range sortedKeys(mapping) {
			target := mapping[alias]
			if next, ok := mapping[target]; ok && next != target {
				return errors.Errorf(
					"warehouse mapping for %s is not stable: %s -> %s -> %s", env, alias, target, next,
				)
			}
		}
	}

	return nil
}

// HasEnvironment reports whether env is one of the configured environments.
func (c *Config) HasEnvironment(env string) bool {
	return slices.Contains(c.Environments, strings.ToLower(strings.TrimSpace(env)))
}

func (c *Config) applyDefaults() {
	if len(c.Environments) == 0 {
		c.Environments = slices.Clone(consts.DefaultEnvironments)
	}
	for i, env := range c.Environments {
		c.Environments[i] = strings.ToLower(strings.TrimSpace(env))
	}

	if c.OrderFile == "" {
		c.OrderFile = consts.OrderFile
	}
	if c.Subtree == "" {
		c.Subtree = consts.DefaultSubtree
	}
	if c.AdminRole == "" {
		c.AdminRole = consts.DefaultAdminRole
	}
	if c.Metadata.Schema == "" {
		c.Metadata.Schema = consts.DefaultMetadataSchema
	}
	if c.Metadata.ChangeHistoryTable == "" {
		c.Metadata.ChangeHistoryTable = consts.DefaultChangeHistoryTable
	}
	if c.Metadata.BuildInfoTable == "" {
		c.Metadata.BuildInfoTable = consts.DefaultBuildInfoTable
	}
	if c.DevOps.URL == "" {
		c.DevOps.URL = consts.DefaultDevOpsURL
	}
	if c.DevOps.APIVersion == "" {
		c.DevOps.APIVersion = consts.DefaultDevOpsAPIVersion
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}
