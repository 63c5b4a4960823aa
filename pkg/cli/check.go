package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/getmockd/schemagate/pkg/logging"
)

type checkResult struct {
	Schema   string `json:"schema"`
	Version  string `json:"version"`
	BasePath string `json:"basePath,omitempty"`
	Routes   int    `json:"routes"`
	Shapes   int    `json:"shapes"`
}

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the schema and compile every validator",
		Long: `Parse the schema document, build the route index and compile every
schema fragment. Exits non-zero if any step fails, so it can gate CI.

Examples:
  schemagate check --schema openapi.yaml
  schemagate check --schema swagger.json --strict --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			_, idx, err := buildGate(cfg, logging.Nop())
			if err != nil {
				return err
			}

			res := checkResult{
				Schema:   cfg.Schema,
				Version:  idx.Document().Version(),
				BasePath: idx.Document().BasePath(),
				Routes:   len(idx.Entries()),
				Shapes:   len(idx.Shapes()),
			}
			return printCheck(cmd.OutOrStdout(), res, g.jsonOutput)
		},
	}
}

func printCheck(out io.Writer, res checkResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(out, "%s: OK\n", res.Schema)
	fmt.Fprintf(out, "  version:  %s\n", res.Version)
	if res.BasePath != "" {
		fmt.Fprintf(out, "  basePath: %s\n", res.BasePath)
	}
	fmt.Fprintf(out, "  routes:   %d\n", res.Routes)
	fmt.Fprintf(out, "  shapes:   %d\n", res.Shapes)
	return nil
}
