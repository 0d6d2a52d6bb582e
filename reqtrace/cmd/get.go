package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/reqtrace/reqtrace/client"
	"github.com/reqtrace/reqtrace/console"
	"github.com/reqtrace/reqtrace/tracing"
)

var getCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Request a URL and print the lifecycle events.",
	Long: "`get [URL]` sends one request through an instrumented session " +
		"and prints every lifecycle event with its elapsed time.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		method, _ := cmd.Flags().GetString("method")
		body, _ := cmd.Flags().GetString("body")
		headers, _ := cmd.Flags().GetStringSlice("header")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		redirects, _ := cmd.Flags().GetInt("max-redirects")

		printer := console.NewPrinter(os.Stdout)
		cfg := tracing.New()
		printer.Install(cfg)

		sess := client.NewSession(
			client.WithTraceConfig(cfg),
			client.WithMaxRedirects(redirects),
		)
		defer sess.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		opts := []client.RequestOption{
			client.WithTraceSeed(xid.New().String()),
		}
		if body != "" {
			opts = append(opts, client.WithBodyString(body))
		}
		for _, h := range headers {
			key, value, ok := strings.Cut(h, ":")
			if !ok {
				log.Fatalf("Error: header %q is not in key:value form.", h)
			}
			opts = append(opts, client.WithHeader(
				strings.TrimSpace(key), strings.TrimSpace(value)))
		}

		resp, err := sess.Do(ctx, strings.ToUpper(method), args[0], opts...)
		if err != nil {
			printer.Flush()
			log.Printf("Error performing request: %v", err)
			atexit.Exit(1)
		}
		defer resp.Body.Close()

		n, err := io.Copy(io.Discard, resp.Body)
		if err != nil {
			printer.Flush()
			log.Printf("Error reading response body: %v", err)
			atexit.Exit(1)
		}

		printer.Flush()
		fmt.Printf("\n%s %s -> %d (%d body bytes)\n",
			strings.ToUpper(method), args[0], resp.StatusCode, n)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().StringP("method", "X", envOr("REQTRACE_METHOD", "GET"),
		"HTTP method to use")
	getCmd.Flags().StringP("body", "d", "",
		"request body")
	getCmd.Flags().StringSliceP("header", "H", nil,
		"request header in key:value form, repeatable")
	getCmd.Flags().DurationP("timeout", "t", 30*time.Second,
		"overall request timeout")
	getCmd.Flags().Int("max-redirects", 10,
		"redirects to follow before giving up")
}
