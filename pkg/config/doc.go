// Package config loads the schemagate server configuration.
//
// Values are layered in this order, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. A YAML or JSON file (LoadFile)
//  3. SCHEMAGATE_* environment variables (LoadEnv)
//  4. Command-line flags, applied by pkg/cli
//
// Sources records which layer set each field so `schemagate check -v` can
// explain where a value came from.
package config
