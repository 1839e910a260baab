package lsn

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jpmec/mongo-nonx86/journal"
	"github.com/jpmec/mongo-nonx86/utils/log"
)

const (
	lsnUsage        = "lsn"
	lsnShortDesc    = "Reads or rewrites an lsn record file"
	lsnLongDesc     = "Prints the last durably-applied sequence number from an lsn file, verifying its checkbytes. With --set, rewrites the whole record in one write."
	lsnFilePathDesc = "Path to the lsn file"
	lsnSetDesc      = "Rewrite the file with this sequence number"
	lsnExample      = "journaltool lsn --lsnFile /data/db/journal/lsn"
)

var (
	// Cmd is the lsn command.
	Cmd = &cobra.Command{
		Use:     lsnUsage,
		Short:   lsnShortDesc,
		Long:    lsnLongDesc,
		Example: lsnExample,
		RunE:    executeLSN,
	}
	lsnFilePath string
	setValue    uint64
)

func init() {
	Cmd.Flags().StringVarP(&lsnFilePath, "lsnFile", "l", "", lsnFilePathDesc)
	Cmd.Flags().Uint64Var(&setValue, "set", 0, lsnSetDesc)
	Cmd.MarkFlagRequired("lsnFile")
}

func executeLSN(cmd *cobra.Command, args []string) error {
	path := filepath.Clean(lsnFilePath)

	if cmd.Flags().Changed("set") {
		if err := journal.WriteLSNFile(path, setValue); err != nil {
			return err
		}
		log.Info("wrote lsn=%d to %s", setValue, path)
		return nil
	}

	v, err := journal.ReadLSNFile(path)
	if errors.Is(err, journal.ErrUntrustedLSN) {
		log.Warn("%s: record is torn, recovery must fall back to a full scan", path)
		return err
	}
	if err != nil {
		return err
	}
	fmt.Printf("lsn: %d\n", v)
	return nil
}
