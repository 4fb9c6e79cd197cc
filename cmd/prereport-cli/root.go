package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"prereport-service/internal/session"
)

// version is set at build time via -ldflags.
var version = "dev"

var globalFlags struct {
	apiURL      string
	sessionPath string
	timeout     time.Duration
	output      string
}

var rootCmd = &cobra.Command{
	Use:   "prereport",
	Short: "Operator console for the pre-report wizard",
	Long: "prereport drives pre-report wizards over the REST API.\n" +
		"The active report and operator identity are kept in a local session database.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&globalFlags.apiURL, "api-url", envOr("PREREPORT_API_URL", "http://localhost:8080"), "Pre-report API base URL")
	f.StringVar(&globalFlags.sessionPath, "session", session.DefaultPath(), "Session database path")
	f.DurationVar(&globalFlags.timeout, "timeout", 30*time.Second, "Request timeout")
	f.StringVarP(&globalFlags.output, "output", "o", "text", "Output format: text, json or yaml")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(stepCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(prevCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(useCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
