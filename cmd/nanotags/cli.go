package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/nanotags/nanotags/metrics"
	"github.com/arthur-debert/nanotags/nanotags/project"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var globalFlags = []string{"project", "format", "log-level", "log-queries", "metrics-file"}

// ViperCLI is the nanotags command line, configured from flags, NANOTAGS_*
// environment variables and an optional nanotags.yaml
type ViperCLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper
	metrics   *metrics.Filter
}

// NewViperCLI builds the command tree
func NewViperCLI() *ViperCLI {
	cli := &ViperCLI{
		viperInst: viper.New(),
		metrics:   metrics.NewFilter(),
	}
	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()
	return cli
}

func (cli *ViperCLI) setupViperConfig() {
	if configFile := os.Getenv("NANOTAGS_CONFIG"); configFile != "" {
		cli.viperInst.SetConfigFile(configFile)
	} else {
		cli.viperInst.SetConfigName("nanotags")
		cli.viperInst.SetConfigType("yaml")
		cli.viperInst.AddConfigPath(".")
		cli.viperInst.AddConfigPath("$HOME/.nanotags")
	}

	cli.viperInst.SetEnvPrefix("NANOTAGS")
	cli.viperInst.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cli.viperInst.AutomaticEnv()

	// a missing config file is fine
	_ = cli.viperInst.ReadInConfig()
}

func (cli *ViperCLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "nanotags",
		Short: "Tag and search neuroimaging scans",
		Long: `nanotags keeps the tags of a collection of scans in a project directory
and searches them with rapid (free text) and advanced (per-tag) filters.

Configuration sources, by precedence:
1. Command line flags
2. Environment variables (NANOTAGS_PROJECT, NANOTAGS_FORMAT, ...)
3. nanotags.yaml in the current directory or ~/.nanotags,
   or the file named by NANOTAGS_CONFIG

Examples:
  nanotags init study
  nanotags tag add Age --type int
  nanotags scan add sub-01/anat/T1w.nii --set Age=34
  nanotags search anat --field Age --condition ">" --value 30
  nanotags search --field Age --condition "<" --value 30 --save young`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogging(cli.viperInst.GetString("log-level"), cli.viperInst.GetBool("log-queries"))
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			path := cli.viperInst.GetString("metrics-file")
			if path == "" {
				return nil
			}
			return WrapError("export metrics", cli.metrics.WriteTextfile(path))
		},
	}

	cli.addGlobalFlags(cli.rootCmd.PersistentFlags())
}

// addGlobalFlags declares the persistent flags and binds them to viper
func (cli *ViperCLI) addGlobalFlags(flags *pflag.FlagSet) {
	flags.StringP("project", "p", ".", "Project directory")
	flags.StringP("format", "f", "table", "Output format (table|json|yaml)")
	flags.String("log-level", "warn", "Log level (debug|info|warn|error)")
	flags.Bool("log-queries", false, "Echo compiled search expressions on stderr")
	flags.String("metrics-file", "", "Write filter metrics to this file in textfile format")

	for _, name := range globalFlags {
		_ = cli.viperInst.BindPFlag(name, flags.Lookup(name))
	}
}

func (cli *ViperCLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.initCommand(),
		cli.scanCommand(),
		cli.tagCommand(),
		cli.searchCommand(),
		cli.filterCommand(),
		cli.configCommand(),
	)
}

// openProject opens the configured project with the CLI loggers and
// metrics attached
func (cli *ViperCLI) openProject() (*project.Project, error) {
	return project.Open(cli.projectDir(), cli.projectOptions()...)
}

func (cli *ViperCLI) projectDir() string {
	dir := cli.viperInst.GetString("project")
	if dir == "" {
		dir = "."
	}
	return dir
}

func (cli *ViperCLI) projectOptions() []project.Option {
	var opts []project.Option
	if mainLogger != nil {
		opts = append(opts, project.WithLogger(mainLogger))
	}
	if queriesLogger != nil {
		opts = append(opts, project.WithQueryLogger(queriesLogger))
	}
	return append(opts, project.WithObserver(cli.metrics))
}

// withProject runs fn on the open project and closes it afterwards
func (cli *ViperCLI) withProject(operation string, fn func(p *project.Project) error) error {
	p, err := cli.openProject()
	if err != nil {
		return WrapError(operation, err)
	}
	defer func() { _ = p.Close() }()
	return WrapError(operation, fn(p))
}

func (cli *ViperCLI) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [name]",
		Short: "Create a project in the project directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cli.projectDir()
			name := filepath.Base(dir)
			if abs, err := filepath.Abs(dir); err == nil {
				name = filepath.Base(abs)
			}
			if len(args) == 1 {
				name = args[0]
			}
			p, err := project.Create(dir, name, cli.projectOptions()...)
			if err != nil {
				return WrapError("create project", err)
			}
			defer func() { _ = p.Close() }()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created project %q in %s\n", name, dir)
			return err
		},
	}
}

func (cli *ViperCLI) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := make(map[string]interface{}, len(globalFlags))
			for _, name := range globalFlags {
				settings[name] = cli.viperInst.Get(name)
			}
			if used := cli.viperInst.ConfigFileUsed(); used != "" {
				settings["config-file"] = used
			}
			return cli.printer(cmd).value(settings)
		},
	}
}

// Execute runs the command line
func (cli *ViperCLI) Execute() error {
	return cli.rootCmd.Execute()
}

// GetRootCommand returns the root command, for tests
func (cli *ViperCLI) GetRootCommand() *cobra.Command {
	return cli.rootCmd
}
