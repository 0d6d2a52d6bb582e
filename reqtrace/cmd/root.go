// Package cmd provides the command-line interface for reqtrace.
package cmd

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "reqtrace",
	Short: "reqtrace issues HTTP requests and prints their full lifecycle, " +
		"from DNS lookup to last body chunk.",
	Long: `reqtrace issues HTTP requests through an instrumented client ` +
		`session and prints every lifecycle event it observes: DNS lookups ` +
		`and cache hits, connection pooling, header and body transfer, ` +
		`redirects, and failures. It also ships a local target server for ` +
		`exercising the tracer.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Flag defaults can be placed in a .env file.
func Execute() {
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// envOr reads an environment variable, falling back to def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envPortOr reads the serve port from REQTRACE_PORT, falling back to def
// when unset or unparsable.
func envPortOr(def int) int {
	v := os.Getenv("REQTRACE_PORT")
	if v == "" {
		return def
	}

	port, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return port
}
