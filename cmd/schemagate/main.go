// schemagate CLI - schema-validating reverse proxy for OpenAPI and Swagger services
package main

import "github.com/getmockd/schemagate/pkg/cli"

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate
	cli.Execute()
}
