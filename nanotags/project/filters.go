package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/arthur-debert/nanotags/nanotags/filter"
)

const filterExt = ".json"

func (p *Project) filterPath(name string) (string, error) {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrFilterName, name)
	}
	return p.path(filtersDir, name+filterExt), nil
}

// SaveFilter writes f to the filters directory under its name, replacing a
// filter saved with the same name
func (p *Project) SaveFilter(f *filter.Filter) error {
	path, err := p.filterPath(f.Name)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode filter: %w", err)
	}
	if err := os.MkdirAll(p.path(filtersDir), 0o755); err != nil {
		return fmt.Errorf("failed to create filters directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write filter: %w", err)
	}
	p.logger.Debug("filter saved", "name", f.Name)
	return nil
}

// Filters returns the names of the saved filters, sorted
func (p *Project) Filters() ([]string, error) {
	entries, err := os.ReadDir(p.path(filtersDir))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), filterExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filterExt))
	}
	sort.Strings(names)
	return names, nil
}

// Filter loads a saved filter
func (p *Project) Filter(name string) (*filter.Filter, error) {
	path, err := p.filterPath(name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrFilterNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read filter: %w", err)
	}
	var f filter.Filter
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("filter %q: %w", name, err)
	}
	return &f, nil
}

// DeleteFilter removes a saved filter
func (p *Project) DeleteFilter(name string) error {
	path, err := p.filterPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrFilterNotFound, name)
		}
		return fmt.Errorf("failed to delete filter: %w", err)
	}
	return nil
}
