package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/getmockd/schemagate/pkg/config"
	"github.com/getmockd/schemagate/pkg/schema"
)

type routeInfo struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	OperationID string   `json:"operationId,omitempty"`
	Responses   []string `json:"responses,omitempty"`
}

func newRoutesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the operations enforced by the gate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			if cfg.Schema == "" {
				return fmt.Errorf("%w: schema", config.ErrMissingField)
			}
			var opts []schema.LoadOption
			if cfg.StrictSchema {
				opts = append(opts, schema.WithStrictValidation())
			}
			doc, err := schema.LoadFile(cfg.Schema, opts...)
			if err != nil {
				return err
			}
			idx, err := schema.Build(doc)
			if err != nil {
				return err
			}
			return printRoutes(cmd.OutOrStdout(), routeInfos(idx), g.jsonOutput)
		},
	}
}

func routeInfos(idx *schema.Index) []routeInfo {
	entries := idx.Entries()
	out := make([]routeInfo, 0, len(entries))
	for _, e := range entries {
		info := routeInfo{
			Method:      e.Method,
			Path:        e.PathTemplate,
			OperationID: e.OperationID,
		}
		for code := range e.Responses {
			info.Responses = append(info.Responses, code)
		}
		sortStatusKeys(info.Responses)
		out = append(out, info)
	}
	return out
}

// sortStatusKeys orders numeric codes before range keys and "default" last.
func sortStatusKeys(keys []string) {
	rank := func(k string) string {
		if k == "default" {
			return "~"
		}
		return k
	}
	sort.Slice(keys, func(i, j int) bool { return rank(keys[i]) < rank(keys[j]) })
}

func printRoutes(out io.Writer, routes []routeInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(routes)
	}
	if len(routes) == 0 {
		fmt.Fprintln(out, "No routes declared")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tOPERATION\tRESPONSES")
	for _, r := range routes {
		op := r.OperationID
		if op == "" {
			op = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", r.Method, r.Path, op, r.Responses)
	}
	return w.Flush()
}
