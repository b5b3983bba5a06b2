package forksync

import "github.com/spf13/cobra"

const noHeadersUsage = "when using table format, do not print headers"

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "o", "table", "output format: table or json")
}

func addNoHeadersFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-headers", false, noHeadersUsage)
}
