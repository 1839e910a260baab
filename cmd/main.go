package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jpmec/mongo-nonx86/cmd/dump"
	lsncmd "github.com/jpmec/mongo-nonx86/cmd/lsn"
	"github.com/jpmec/mongo-nonx86/utils"
	"github.com/jpmec/mongo-nonx86/utils/log"
)

// flagPrintVersion set flag to show the current journaltool version.
var flagPrintVersion bool

// Execute builds the command tree and executes commands.
func Execute() error {

	// c is the root command.
	c := &cobra.Command{
		Use:   "journaltool",
		Short: "Inspects durability journal files and lsn records",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Print version if specified.
			if flagPrintVersion {
				log.Info("version: %v", utils.Tag)
				log.Info("commit hash: %v", utils.GitHash)
				log.Info("utc build time: %v", utils.BuildStamp)
				return nil
			}
			// Print information regarding usage.
			return cmd.Usage()
		},
	}

	// Adds subcommands and version flag.
	c.AddCommand(dump.Cmd)
	c.AddCommand(lsncmd.Cmd)
	c.Flags().BoolVarP(&flagPrintVersion, "version", "v", false, "show the version info and exit")

	return c.Execute()
}
