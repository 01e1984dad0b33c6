package main

import (
	"github.com/spf13/cobra"
)

// Version задается при сборке: -ldflags "-X main.Version=..."
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tdtpexport",
		Short:         "Export extracted text rows into a SQL table",
		Long:          `tdtpexport reads rows produced by the extraction stage (local file or S3, optionally zstd) and inserts them through a prepared statement, binding each value with the type declared for its column.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newTypesCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("tdtpexport %s\n", Version)
		},
	}
}
