package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "wildgoose"}

	root.AddCommand(serveCMD(), runCMD(), migrateCMD(), versionCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
