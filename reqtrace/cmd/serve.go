package cmd

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/reqtrace/reqtrace/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local target server for exercising the tracer.",
	Long: "`serve` starts an HTTP server with endpoints that redirect, " +
		"stream chunks, delay, echo, and fail, so every lifecycle event " +
		"can be observed against a local target.",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		open, _ := cmd.Flags().GetBool("open")

		addr := fmt.Sprintf(":%d", port)
		log.Printf("Serving trace target on %s", addr)

		if open {
			go func() {
				time.Sleep(100 * time.Millisecond)
				url := fmt.Sprintf("http://127.0.0.1:%d/ok", port)
				if err := browser.OpenURL(url); err != nil {
					log.Printf("Error opening browser: %v", err)
				}
			}()
		}

		err := http.ListenAndServe(addr, web.NewRouter())
		if err != nil {
			log.Fatalf("Error serving: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", envPortOr(8199),
		"port to listen on")
	serveCmd.Flags().Bool("open", false,
		"open the target in a browser after starting")
}
