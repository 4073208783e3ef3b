package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// DefaultAPIURL: адрес runtime API по умолчанию.
const DefaultAPIURL = "http://localhost:8085"

// NewRootCmd собирает корневую команду connectors-cli.
//
// stdout и stderr передаются явно, чтобы команды можно было
// выполнять в тестах.
func NewRootCmd(version string, stdout, stderr io.Writer) *cobra.Command {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "connectors-cli",
		Short:         "Connectors CLI: inspect the connectors runtime and call webhooks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", DefaultAPIURL, "Runtime API URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output { return NewOutputTo(jsonOutput, stdout, stderr) }

	rootCmd.AddCommand(
		NewInstancesCmd(clientFn, outputFn),
		NewClusterCmd(clientFn, outputFn),
		NewOutboundCmd(clientFn, outputFn),
		NewWebhookCmd(clientFn, outputFn),
		NewHMACCmd(outputFn),
	)

	return rootCmd
}
