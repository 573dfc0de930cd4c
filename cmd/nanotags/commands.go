package main

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotags/nanotags/filter"
	"github.com/arthur-debert/nanotags/nanotags/project"
	"github.com/arthur-debert/nanotags/types"
	"github.com/spf13/cobra"
)

func (cli *ViperCLI) scanCommand() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Add and inspect scans",
	}

	addCmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a scan with optional tag values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, _ := cmd.Flags().GetStringArray("set")
			values, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			return cli.withProject("add scan", func(p *project.Project) error {
				if err := p.AddScan(args[0], values); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", args[0])
				return err
			})
		},
	}
	addCmd.Flags().StringArray("set", nil, "Tag value as Tag=value (repeatable; lists as JSON)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List scans with the shown tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("list scans", func(p *project.Project) error {
				keys, err := p.Scans()
				if err != nil {
					return err
				}
				return cli.printScans(cmd, p, keys)
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Show every tag of a scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("show scan", func(p *project.Project) error {
				doc, err := p.Scan(args[0])
				if err != nil {
					return err
				}
				if doc == nil {
					return fmt.Errorf("%w: %q", types.ErrDocumentNotFound, args[0])
				}
				return cli.printer(cmd).value(doc.Values)
			})
		},
	}

	scanCmd.AddCommand(addCmd, listCmd, showCmd)
	return scanCmd
}

func (cli *ViperCLI) printScans(cmd *cobra.Command, p *project.Project, keys []string) error {
	tags, err := p.ShownTags()
	if err != nil {
		return err
	}
	docs := make([]types.Document, 0, len(keys))
	for _, key := range keys {
		doc, err := p.Scan(key)
		if err != nil {
			return err
		}
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return cli.printer(cmd).scans(docs, tags)
}

func parseAssignments(sets []string) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(sets))
	for _, set := range sets {
		name, value, ok := strings.Cut(set, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, NewValidationError("add scan", "assignment", set, "Use --set Tag=value")
		}
		values[name] = value
	}
	return values, nil
}

func (cli *ViperCLI) tagCommand() *cobra.Command {
	tagCmd := &cobra.Command{
		Use:   "tag",
		Short: "Declare and inspect tags",
	}

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Declare a user tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			typeName, _ := flags.GetString("type")
			description, _ := flags.GetString("description")
			hidden, _ := flags.GetBool("hidden")
			unitName, _ := flags.GetString("unit")

			fieldType, err := types.ParseFieldType(typeName)
			if err != nil {
				return NewValidationError("add tag", "type", typeName, fmt.Sprintf("Available types: %s", typeNames()))
			}
			unit, err := types.ParseUnit(unitName)
			if err != nil {
				return NewValidationError("add tag", "unit", unitName)
			}
			attrs := types.NewFieldAttributes(!hidden, types.OriginUser).WithUnit(unit)
			if flags.Changed("default") {
				def, _ := flags.GetString("default")
				attrs = attrs.WithDefault(def)
			}

			return cli.withProject("add tag", func(p *project.Project) error {
				if err := p.AddTag(args[0], fieldType, description, attrs); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Added tag %s (%s)\n", args[0], fieldType)
				return err
			})
		},
	}
	addCmd.Flags().String("type", string(types.FieldTypeString), "Tag type")
	addCmd.Flags().String("description", "", "Tag description")
	addCmd.Flags().Bool("hidden", false, "Hide the tag from the browser and rapid searches")
	addCmd.Flags().String("unit", "", "Unit of the values")
	addCmd.Flags().String("default", "", "Value given to scans without one")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the tags and their attributes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("list tags", func(p *project.Project) error {
				fields, err := p.Tags()
				if err != nil {
					return err
				}
				return cli.printer(cmd).tags(fields)
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("show tag", func(p *project.Project) error {
				field, err := p.Tag(args[0])
				if err != nil {
					return err
				}
				if field == nil {
					return fmt.Errorf("%w: %q", types.ErrFieldNotFound, args[0])
				}
				return cli.printer(cmd).tags([]types.Field{*field})
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a user tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("remove tag", func(p *project.Project) error {
				return p.RemoveTag(args[0])
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Change the unit, default value or visibility of a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("set tag attributes", func(p *project.Project) error {
				field, err := p.Tag(args[0])
				if err != nil {
					return err
				}
				if field == nil {
					return fmt.Errorf("%w: %q", types.ErrFieldNotFound, args[0])
				}
				attrs := types.NewFieldAttributes(true, types.OriginUser)
				if field.Attributes != nil {
					attrs = *field.Attributes
				}

				flags := cmd.Flags()
				if flags.Changed("unit") {
					unitName, _ := flags.GetString("unit")
					if attrs.Unit, err = types.ParseUnit(unitName); err != nil {
						return NewValidationError("set tag attributes", "unit", unitName)
					}
				}
				if flags.Changed("default") {
					def, _ := flags.GetString("default")
					attrs = attrs.WithDefault(def)
				}
				if drop, _ := flags.GetBool("no-default"); drop {
					attrs.DefaultValue = nil
				}
				if flags.Changed("visible") {
					attrs.Visibility, _ = flags.GetBool("visible")
				}
				return p.SetTagAttributes(args[0], attrs)
			})
		},
	}
	setCmd.Flags().String("unit", "", "Unit of the values")
	setCmd.Flags().String("default", "", "Value given to new scans")
	setCmd.Flags().Bool("no-default", false, "Remove the default value")
	setCmd.Flags().Bool("visible", true, "Show the tag in the browser and rapid searches")

	shownCmd := &cobra.Command{
		Use:   "shown [names...]",
		Short: "Print the shown tags, or show exactly the given ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("set shown tags", func(p *project.Project) error {
				if len(args) > 0 {
					if err := p.SetShownTags(args); err != nil {
						return err
					}
				}
				shown, err := p.ShownTags()
				if err != nil {
					return err
				}
				return cli.printer(cmd).names(shown)
			})
		},
	}

	tagCmd.AddCommand(addCmd, listCmd, showCmd, setCmd, removeCmd, shownCmd)
	return tagCmd
}

func typeNames() string {
	all := types.FieldTypes()
	names := make([]string, len(all))
	for i, t := range all {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func (cli *ViperCLI) searchCommand() *cobra.Command {
	rows := &searchRows{}
	searchCmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search scans with a rapid text and advanced rows",
		Long: `Search scans. The text is looked for in every shown tag; --not-defined
selects scans missing a value in a shown tag instead.

Advanced rows are given by repeating --field, --condition, --value and
--not. Flags are grouped into rows in command line order: a flag starts a
new row when the current row already has it, and --field also starts one
after a --condition. A row's --field is a comma separated tag list; a row
without --field, or with an empty one, targets every shown tag. HAS VALUE
and HAS NO VALUE rows take no --value. --link defaults to AND between
consecutive rows. IN and BETWEEN values are separated by ";".

Examples:
  nanotags search alice
  nanotags search --field Age --condition BETWEEN --value "20;30"
  nanotags search --field Sex --condition == --value F \
                  --field Age --condition "<" --value 40 --link AND`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filterFromFlags(cmd, args, rows)
			if err != nil {
				return err
			}
			return cli.withProject("search", func(p *project.Project) error {
				if f.Name != "" {
					if err := p.SaveFilter(f); err != nil {
						return err
					}
				}
				keys, err := p.Search(f)
				if err != nil {
					return err
				}
				return cli.printScans(cmd, p, keys)
			})
		},
	}
	flags := searchCmd.Flags()
	flags.Bool("not-defined", false, "Select scans with a missing value in a shown tag")
	flags.Var(rowFlag{rows, rowField}, rowField, "Tags of a row, comma separated (repeatable)")
	flags.Var(rowFlag{rows, rowCondition}, rowCondition, "Condition of a row (repeatable)")
	flags.Var(rowFlag{rows, rowValue}, rowValue, "Value of a row (repeatable)")
	flags.Var(rowFlag{rows, rowNot}, rowNot, "Negation of a row: NOT or empty (repeatable)")
	flags.StringArray("link", nil, "Link between consecutive rows: AND or OR (repeatable)")
	flags.String("save", "", "Save the filter under this name")
	return searchCmd
}

// Row flags of the search command
const (
	rowField     = "field"
	rowCondition = "condition"
	rowValue     = "value"
	rowNot       = "not"
)

type searchRow struct {
	fields    []string
	condition string
	value     interface{}
	not       string
	set       map[string]bool
}

// searchRows groups the row flags into rows in the order pflag sets them
type searchRows struct {
	rows []*searchRow
}

func (r *searchRows) current(flag string) *searchRow {
	n := len(r.rows)
	if n == 0 || r.rows[n-1].set[flag] || (flag == rowField && r.rows[n-1].set[rowCondition]) {
		r.rows = append(r.rows, &searchRow{set: make(map[string]bool)})
	}
	row := r.rows[len(r.rows)-1]
	row.set[flag] = true
	return row
}

// rowFlag is a pflag.Value adding one flag occurrence to the current row
type rowFlag struct {
	rows *searchRows
	name string
}

func (f rowFlag) String() string { return "" }
func (f rowFlag) Type() string   { return "string" }

func (f rowFlag) Set(v string) error {
	row := f.rows.current(f.name)
	switch f.name {
	case rowField:
		row.fields = []string{}
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				row.fields = append(row.fields, tag)
			}
		}
	case rowCondition:
		row.condition = v
	case rowValue:
		row.value = v
	case rowNot:
		row.not = v
	}
	return nil
}

// filterFromFlags builds a filter from the search text and rows
func filterFromFlags(cmd *cobra.Command, args []string, rows *searchRows) (*filter.Filter, error) {
	flags := cmd.Flags()
	links, _ := flags.GetStringArray("link")
	name, _ := flags.GetString("save")
	notDefined, _ := flags.GetBool("not-defined")

	text := ""
	if len(args) == 1 {
		text = args[0]
	}
	if notDefined {
		if text != "" {
			return nil, NewValidationError("search", "text", text, "--not-defined replaces the search text")
		}
		text = filter.NotDefined
	}

	n := len(rows.rows)
	for n > 0 && len(links) < n-1 {
		links = append(links, filter.TokenAnd)
	}

	var (
		nots       = make([]string, n)
		values     = make([]interface{}, n)
		fields     = make([][]string, n)
		conditions = make([]string, n)
	)
	for i, row := range rows.rows {
		if !row.set[rowValue] && needsValue(row.condition) {
			return nil, WrapError("search", fmt.Errorf("%w: row %d (%s) needs a --value",
				filter.ErrMalformedFilter, i, row.condition))
		}
		nots[i] = row.not
		values[i] = row.value
		fields[i] = row.fields
		if fields[i] == nil {
			fields[i] = []string{}
		}
		conditions[i] = row.condition
	}

	f := filter.New(name, nots, values, fields, links, conditions, text)
	if err := f.Validate(); err != nil {
		return nil, WrapError("search", err)
	}
	return f, nil
}

// needsValue reports whether a condition takes an operand. Unknown
// conditions are left to the compiler to reject.
func needsValue(condition string) bool {
	cond, err := filter.ParseCondition(condition)
	if err != nil {
		return false
	}
	return cond != filter.CondHasValue && cond != filter.CondHasNoValue
}

func (cli *ViperCLI) filterCommand() *cobra.Command {
	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Manage saved filters",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("list filters", func(p *project.Project) error {
				names, err := p.Filters()
				if err != nil {
					return err
				}
				return cli.printer(cmd).names(names)
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a saved filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("show filter", func(p *project.Project) error {
				f, err := p.Filter(args[0])
				if err != nil {
					return err
				}
				return cli.printer(cmd).value(f.JSONFormat())
			})
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Search with a saved filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("run filter", func(p *project.Project) error {
				f, err := p.Filter(args[0])
				if err != nil {
					return err
				}
				keys, err := p.Search(f)
				if err != nil {
					return err
				}
				return cli.printScans(cmd, p, keys)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withProject("delete filter", func(p *project.Project) error {
				return p.DeleteFilter(args[0])
			})
		},
	}

	filterCmd.AddCommand(listCmd, showCmd, runCmd, deleteCmd)
	return filterCmd
}
