// In file: cmd/assistant/root.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const rootLongDesc string = `Notion Assistant lets you read and update your Notion workspace by chatting.

The language model decides which Notion operation to run (search, query a database,
create or update a page, append content); prior conversations are remembered in mem0.

Run it using:
  assistant chat       Chat in the terminal
  assistant serve      Serve the HTTP chat API
  assistant version    Print build information`

const rootShortDesc string = "Notion Assistant - chat with your Notion workspace"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "assistant",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := GetBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "assistant %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
		},
	}
}
