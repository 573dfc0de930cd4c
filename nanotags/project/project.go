// Package project manages a project directory: the scan database, the
// project properties and the saved filters.
//
//	<dir>/properties.yml
//	<dir>/database/tags.json
//	<dir>/filters/<name>.json
package project

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arthur-debert/nanotags/nanotags/attributes"
	"github.com/arthur-debert/nanotags/nanotags/filter"
	"github.com/arthur-debert/nanotags/nanotags/storage"
	"github.com/arthur-debert/nanotags/nanotags/store"
	"github.com/arthur-debert/nanotags/types"
	"gopkg.in/yaml.v3"
)

const (
	propertiesFile = "properties.yml"
	databaseDir    = "database"
	databaseFile   = "tags.json"
	filtersDir     = "filters"
)

// Builtin tags created with every project
const (
	TagChecksum = "Checksum"
	TagType     = "Type"
	TagExpType  = "Exp Type"
)

var (
	ErrProjectExists  = errors.New("project already exists")
	ErrNotProject     = errors.New("not a project directory")
	ErrFilterNotFound = errors.New("filter not found")
	ErrFilterName     = errors.New("invalid filter name")
)

// SortOrder of the browser table
type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

// Properties is the content of properties.yml
type Properties struct {
	Name        string    `yaml:"name"`
	DateCreated time.Time `yaml:"date_created"`
	SortedTag   string    `yaml:"sorted_tag"`
	SortOrder   SortOrder `yaml:"sort_order"`
}

// Project is an open project directory
type Project struct {
	dir      string
	props    Properties
	db       *store.DB
	logger   *slog.Logger
	queries  *slog.Logger
	observer filter.Observer
}

// Option configures a Project
type Option func(*Project)

// WithLogger sets the logger of the project and its database
func WithLogger(logger *slog.Logger) Option {
	return func(p *Project) {
		p.logger = logger
	}
}

// WithQueryLogger sends the compiled search expressions to logger instead
// of the project logger
func WithQueryLogger(logger *slog.Logger) Option {
	return func(p *Project) {
		p.queries = logger
	}
}

// WithObserver reports search phase timings to o
func WithObserver(o filter.Observer) Option {
	return func(p *Project) {
		p.observer = o
	}
}

func newProject(dir string, opts []Option) *Project {
	p := &Project{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.queries == nil {
		p.queries = p.logger
	}
	return p
}

// Create initialises a project in dir, which may exist but must not hold
// a project already
func Create(dir, name string, opts ...Option) (*Project, error) {
	p := newProject(dir, opts)
	if _, err := os.Stat(p.path(propertiesFile)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectExists, dir)
	}
	for _, sub := range []string{databaseDir, filtersDir} {
		if err := os.MkdirAll(p.path(sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	p.props = Properties{
		Name:        name,
		DateCreated: time.Now().UTC().Truncate(time.Second),
		SortedTag:   types.TagFileName,
		SortOrder:   SortAscending,
	}
	if err := p.saveProperties(); err != nil {
		return nil, err
	}
	if err := p.openDB(); err != nil {
		return nil, err
	}

	err := p.Write(func(s store.Session) error {
		return initSchema(attributes.Wrap(s))
	})
	if err != nil {
		_ = p.db.Close()
		return nil, fmt.Errorf("failed to initialise database: %w", err)
	}
	p.logger.Info("project created", "dir", dir, "name", name)
	return p, nil
}

func initSchema(s *attributes.Session) error {
	key := types.NewFieldAttributes(true, types.OriginBuiltin)
	for _, c := range []string{types.CollectionCurrent, types.CollectionInitial} {
		if err := s.AddCollection(c, types.TagFileName, key); err != nil {
			return err
		}
	}

	var specs []attributes.FieldSpec
	for _, c := range []string{types.CollectionCurrent, types.CollectionInitial} {
		specs = append(specs,
			attributes.FieldSpec{Collection: c, Name: TagChecksum, Type: types.FieldTypeString,
				Description: "Checksum of the file", Attributes: types.NewFieldAttributes(true, types.OriginBuiltin)},
			attributes.FieldSpec{Collection: c, Name: TagType, Type: types.FieldTypeString,
				Description: "Type of the file", Attributes: types.NewFieldAttributes(true, types.OriginBuiltin)},
			attributes.FieldSpec{Collection: c, Name: TagExpType, Type: types.FieldTypeString,
				Description: "Type of the acquisition", Attributes: types.NewFieldAttributes(true, types.OriginBuiltin)},
			attributes.FieldSpec{Collection: c, Name: types.TagHistory, Type: types.FieldTypeListString,
				Description: "Processing history", Attributes: types.NewFieldAttributes(false, types.OriginBuiltin)},
		)
	}
	return s.AddFields(specs)
}

// Open opens the project in dir
func Open(dir string, opts ...Option) (*Project, error) {
	p := newProject(dir, opts)
	raw, err := os.ReadFile(p.path(propertiesFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotProject, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read properties: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p.props); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", propertiesFile, err)
	}
	if err := p.openDB(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) openDB() error {
	db, err := store.Open(
		storage.NewJSONFile(p.path(databaseDir, databaseFile)),
		store.WithLogger(p.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	p.db = db
	return nil
}

// Close releases the database
func (p *Project) Close() error {
	return p.db.Close()
}

// Dir returns the project directory
func (p *Project) Dir() string { return p.dir }

// Properties returns the project properties
func (p *Project) Properties() Properties { return p.props }

// SetSort changes the sorted tag and order of the browser table
func (p *Project) SetSort(tag string, order SortOrder) error {
	p.props.SortedTag = tag
	p.props.SortOrder = order
	return p.saveProperties()
}

func (p *Project) saveProperties() error {
	raw, err := yaml.Marshal(&p.props)
	if err != nil {
		return fmt.Errorf("failed to encode properties: %w", err)
	}
	if err := os.WriteFile(p.path(propertiesFile), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write properties: %w", err)
	}
	return nil
}

func (p *Project) path(elem ...string) string {
	return filepath.Join(append([]string{p.dir}, elem...)...)
}

// Read runs fn in a read session of the project database
func (p *Project) Read(fn func(store.Session) error) error {
	return p.db.Read(fn)
}

// Write runs fn in a write session of the project database
func (p *Project) Write(fn func(store.Session) error) error {
	return p.db.Write(fn)
}
