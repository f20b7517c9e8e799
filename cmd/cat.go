package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/pkg/app"
	"github.com/deploymenttheory/go-minixfs/pkg/services"
)

var catCmd = &cobra.Command{
	Use:   "cat <image> <inode>",
	Short: "Copy the data of an inode to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := newContext(cmd)

		ino, err := parseIno(args[1])
		if err != nil {
			return err
		}

		svc, err := openImage(ctx, args[0], services.AccessReadOnly)
		if err != nil {
			return err
		}
		defer closeImage(svc, &err)

		n, err := svc.ReadFile(ctx, ino, ctx.Stdout)
		if err != nil {
			return commandError(fmt.Sprintf("cannot read inode %d", ino), err)
		}
		ctx.Log("Read %s from inode %d", app.FormatBytes(n), ino)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}
