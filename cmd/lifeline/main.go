// Command lifeline queues SOS reports offline, syncs them to the command
// center, and replays ambulance routes.
package main

import (
	"os"

	"github.com/lifeline/lifeline/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		formatter := &cli.OutputFormatter{
			Format: formatFlag(cmd.PersistentFlags().Lookup("format").Value.String()),
			Writer: os.Stderr,
		}
		_ = formatter.Report(err)
		os.Exit(cli.GetExitCode(err))
	}
}

// formatFlag falls back to text when the flag itself was invalid.
func formatFlag(v string) string {
	if v == "json" {
		return "json"
	}
	return "text"
}
