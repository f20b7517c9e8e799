package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/pkg/services"
)

var statCmd = &cobra.Command{
	Use:   "stat <image> <inode>",
	Short: "Decode an inode",
	Long: `Decode one inode record. Inodes that are not in use can be inspected
as well; their link count is zero.`,
	Args: cobra.ExactArgs(2),
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

		info, err := svc.Stat(ctx, ino)
		if err != nil {
			return commandError(fmt.Sprintf("cannot stat inode %d", ino), err)
		}
		return ctx.Render(info)
	},
}

func init() {
	rootCmd.AddCommand(statCmd)
}
