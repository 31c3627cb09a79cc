// Package cmd implements the command-line interface for the pepper auth
// service.
//
// This package provides the following commands:
//   - serve: Start the auth HTTP server and the metrics server
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
