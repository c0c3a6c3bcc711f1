package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "newsdesk",
		Short:        "News question answering over freshly scraped RSS articles",
		SilenceUsage: true,
	}
	serve := serveCMD()
	root.AddCommand(serve, ingestCMD())
	root.RunE = serve.RunE

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
