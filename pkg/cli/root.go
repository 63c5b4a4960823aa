package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/schemagate/pkg/config"
	"github.com/getmockd/schemagate/pkg/logging"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile string
	schema     string
	strict     bool
	logLevel   string
	logFormat  string
	jsonOutput bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "schemagate",
		Short: "schemagate validates HTTP traffic against an OpenAPI or Swagger schema",
		Long: `schemagate sits in front of an HTTP service and checks every request and
response against the operations declared in an OpenAPI 3.x or Swagger 2.0
document. Invalid requests are rejected before they reach the service;
invalid responses are replaced with a 500.

Configuration can be provided via flags, SCHEMAGATE_* environment variables,
or a YAML/JSON file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configFile, "config", "c", "", "Path to configuration file (or set SCHEMAGATE_CONFIG)")
	pf.StringVarP(&g.schema, "schema", "s", "", "Path to the OpenAPI/Swagger document")
	pf.BoolVar(&g.strict, "strict", false, "Validate the schema document itself while loading")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format (text, json)")
	pf.BoolVar(&g.jsonOutput, "json", false, "Output command results in JSON format")

	root.AddCommand(
		newServeCmd(g),
		newCheckCmd(g),
		newRoutesCmd(g),
		newVersionCmd(g),
	)
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig layers flags that were set explicitly over file and env values.
func loadConfig(cmd *cobra.Command, g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("schema") {
		cfg.Schema = g.schema
		cfg.Sources["schema"] = config.SourceFlag
	}
	if flags.Changed("strict") {
		cfg.StrictSchema = g.strict
		cfg.Sources["strictSchema"] = config.SourceFlag
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
		cfg.Sources["log.level"] = config.SourceFlag
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = g.logFormat
		cfg.Sources["log.format"] = config.SourceFlag
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: out,
	})
}
