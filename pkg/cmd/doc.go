// Package cmd provides the CLI commands for snowkeeper.
//
// # Available Commands
//
//   - deploy: Apply the scripts that changed between two revisions
//   - plan: Show what deploy would apply without connecting to Snowflake
//   - init: Scaffold snowkeeper.yaml, order_file.txt and the script folders
//
// # Command Structure
//
// Each command is a constructor returning a *cli.Command. Commands receive
// their dependencies through fx parameter structs and are collected into the
// root command through the "commands" value group:
//
//	var root *cli.Command
//	app := fx.New(config.Module, cmd.Module, fx.Supply(version), fx.Populate(&root))
//
// # Global Options
//
//   - --verbose, -v: Log at debug level
//   - --help, -h: Display command help
//   - --version: Display version information
//
// # Errors
//
// Commands return errors classified by package failure. Configuration errors
// are reported before anything is executed; resolution errors before any
// script runs.
package cmd
