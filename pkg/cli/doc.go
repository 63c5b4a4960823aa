// Package cli implements the schemagate command-line interface.
//
// Commands:
//   - serve: run the validating reverse proxy in front of an upstream
//   - check: load the schema, build the route index and compile every shape
//   - routes: list the operations the gate enforces
//   - version: show build information
//
// Configuration comes from --config, SCHEMAGATE_* environment variables and
// flags, in increasing precedence (see pkg/config).
package cli
