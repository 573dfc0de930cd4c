package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/arthur-debert/nanotags/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type printer struct {
	out    io.Writer
	format string
}

func (cli *ViperCLI) printer(cmd *cobra.Command) *printer {
	return &printer{out: cmd.OutOrStdout(), format: strings.ToLower(cli.viperInst.GetString("format"))}
}

func (p *printer) check() error {
	switch p.format {
	case "table", "json", "yaml":
		return nil
	}
	return NewValidationError("format output", "format", p.format, "Use one of: table, json, yaml")
}

// encoded writes v as JSON or YAML. It returns false for the table format.
func (p *printer) encoded(v interface{}) (bool, error) {
	if err := p.check(); err != nil {
		return true, err
	}
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

// value prints a map as sorted key: value lines in table format
func (p *printer) value(v map[string]interface{}) error {
	if done, err := p.encoded(v); done {
		return err
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%v\n", k, v[k])
	}
	return w.Flush()
}

func (p *printer) names(names []string) error {
	if done, err := p.encoded(names); done {
		return err
	}
	for _, name := range names {
		if _, err := fmt.Fprintln(p.out, name); err != nil {
			return err
		}
	}
	return nil
}

// scans prints one row per scan with the given tags as columns
func (p *printer) scans(docs []types.Document, tags []string) error {
	rows := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		row := make(map[string]interface{}, len(tags))
		for _, tag := range tags {
			row[tag] = doc.Get(tag)
		}
		rows[i] = row
	}
	if done, err := p.encoded(rows); done {
		return err
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(tags, "\t"))
	for _, row := range rows {
		cells := make([]string, len(tags))
		for i, tag := range tags {
			cells[i] = cell(row[tag])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

type tagRow struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Visible     bool   `json:"visible" yaml:"visible"`
	Origin      string `json:"origin" yaml:"origin"`
	Unit        string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Default     string `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

func toTagRow(f types.Field) tagRow {
	row := tagRow{Name: f.Name, Type: f.Type.String(), Description: f.Description}
	if a := f.Attributes; a != nil {
		row.Visible = a.Visibility
		row.Origin = a.Origin.String()
		if a.Unit != types.UnitNone {
			row.Unit = a.Unit.String()
		}
		if a.DefaultValue != nil {
			row.Default = *a.DefaultValue
		}
	}
	return row
}

func (p *printer) tags(fields []types.Field) error {
	rows := make([]tagRow, len(fields))
	for i, f := range fields {
		rows[i] = toTagRow(f)
	}
	if done, err := p.encoded(rows); done {
		return err
	}
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tVISIBLE\tORIGIN\tUNIT\tDEFAULT")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n", r.Name, r.Type, r.Visible, r.Origin, r.Unit, r.Default)
	}
	return w.Flush()
}

func cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case []interface{}:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("%v", v)
}
