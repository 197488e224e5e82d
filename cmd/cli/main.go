package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/icon-project/btp2/common/cli"
	"github.com/spf13/cobra"
)

var (
	version = "unknown"
	build   = "unknown"
)

func main() {
	rootCmd, rootVc := cli.NewCommand(nil, nil, "binder-cli", "Contract binder CLI")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	cli.SetEnvKeyReplacer(rootVc, strings.NewReplacer(" ", "_", ".", "_", "-", "_"))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(rootCmd.Use, "version", version, build)
		},
	})

	var logoLines = []string{`
  ____  _           _           
 | __ )(_)_ __   __| | ___ _ __ 
 |  _ \| | '_ \ / _' |/ _ \ '__|
 | |_) | | | | | (_| |  __/ |   
 |____/|_|_| |_|\__,_|\___|_|   
`,
	}
	NewServerCommand(rootCmd, rootVc, version, build, logoLines)
	NewApiCommand(rootCmd, rootVc)
	NewMonitorCommand(rootCmd, rootVc)
	NewBindingCommands(rootCmd)

	genMdCmd := cli.NewGenerateMarkdownCommand(rootCmd, rootVc)
	genMdCmd.Hidden = true

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("%+v\n", err)
		os.Exit(1)
	}
}
