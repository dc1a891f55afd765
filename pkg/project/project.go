package project

import (
	"bytes"
	_ "embed"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing/fstest"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/config"
	"github.com/pseudomuto/snowkeeper/pkg/consts"
	"github.com/pseudomuto/snowkeeper/pkg/snowflake"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var (
	//go:embed embed/order_file.txt
	defaultOrderFile []byte

	image = fstest.MapFS{
		consts.ConfigFile:         {Data: config.DefaultYAML, Mode: consts.ModeFile},
		consts.OrderFile:          {Data: defaultOrderFile, Mode: consts.ModeFile},
		"coEDW":                   {Mode: os.ModeDir | consts.ModeDir},
		"account":                 {Mode: os.ModeDir | consts.ModeDir},
		"account/post_deployment": {Mode: os.ModeDir | consts.ModeDir},
	}
)

type (
	// InitOptions customizes a newly written snowkeeper.yaml. They have no
	// effect when the file already exists.
	InitOptions struct {
		// WarehouseSizes sets the warehouse size policy.
		WarehouseSizes map[string]string
	}

	// Project is a snowkeeper project rooted at a directory.
	Project struct {
		fs     afero.Fs
		root   string
		config *config.Config
	}
)

// New creates a Project rooted at root.
func New(fs afero.Fs, root string) *Project {
	return &Project{fs: fs, root: root}
}

// Root returns the project directory.
func (p *Project) Root() string { return p.root }

// Config returns the configuration loaded by Initialize or Load.
func (p *Project) Config() *config.Config { return p.config }

// Initialize creates the missing parts of the project layout and loads the
// configuration. It returns the paths it created, relative to the root.
func (p *Project) Initialize(opts InitOptions) ([]string, error) {
	if err := p.ensureDirectory(); err != nil {
		return nil, err
	}

	var created []string

	// sorted so parents come before children
	for _, path := range slices.Sorted(maps.Keys(image)) {
		entry := image[path]
		fullPath := filepath.Join(p.root, filepath.FromSlash(path))

		exists, err := afero.Exists(p.fs, fullPath)
		if err != nil {
			return created, errors.Wrapf(err, "failed to stat %s", fullPath)
		}

		if exists {
			continue
		}

		data := entry.Data
		if path == consts.ConfigFile {
			if data, err = customize(data, opts); err != nil {
				return created, err
			}
		}

		if err := write(p.fs, fullPath, entry, data); err != nil {
			return created, err
		}

		created = append(created, path)
	}

	return created, p.Load()
}

// Load reads snowkeeper.yaml from the project root.
func (p *Project) Load() error {
	path := filepath.Join(p.root, consts.ConfigFile)
	f, err := p.fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer func() { _ = f.Close() }()

	cfg, err := config.LoadConfig(f)
	if err != nil {
		return errors.Wrapf(err, "failed to load %s", path)
	}

	p.config = cfg
	return nil
}

func (p *Project) ensureDirectory() error {
	info, err := p.fs.Stat(p.root)
	if err != nil {
		return errors.Wrapf(err, "failed to stat dir: %s", p.root)
	}

	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", p.root)
	}

	return nil
}

func write(fs afero.Fs, path string, entry *fstest.MapFile, data []byte) error {
	if entry.Mode.IsDir() {
		return errors.Wrapf(fs.MkdirAll(path, entry.Mode.Perm()), "failed to create directory %s", path)
	}

	if err := fs.MkdirAll(filepath.Dir(path), consts.ModeDir); err != nil {
		return errors.Wrapf(err, "failed to create parent directory of %s", path)
	}

	return errors.Wrapf(afero.WriteFile(fs, path, data, entry.Mode.Perm()), "failed to write file %s", path)
}

func customize(data []byte, opts InitOptions) ([]byte, error) {
	if len(opts.WarehouseSizes) == 0 {
		return data, nil
	}

	cfg, err := config.LoadConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	cfg.WarehouseSizes = make(map[string]string, len(opts.WarehouseSizes))
	for env, size := range opts.WarehouseSizes {
		if cfg.WarehouseSizes[env], err = snowflake.NormalizeSize(size); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid init options")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to write config")
	}

	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close yaml encoder")
	}

	return buf.Bytes(), nil
}
