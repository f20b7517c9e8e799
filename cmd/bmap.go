package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/pkg/app"
	"github.com/deploymenttheory/go-minixfs/pkg/services"
)

var bmapCmd = &cobra.Command{
	Use:   "bmap <image> <inode> <block>",
	Short: "Resolve a logical block of an inode to a physical block",
	Long: `Resolve a logical block of an inode without allocating anything.
Blocks 0-6 are direct, 7-518 single-indirect and the rest double-indirect.

Examples:
  # Where does the root directory keep its first block
  minixfs bmap disk.img 1 0

  # Look up a block behind the double-indirect block
  minixfs bmap disk.img 12 600 -o json`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := newContext(cmd)

		ino, err := parseIno(args[1])
		if err != nil {
			return err
		}
		block, perr := strconv.ParseUint(args[2], 10, 32)
		if perr != nil {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("invalid block number %q", args[2]), perr)
		}

		svc, err := openImage(ctx, args[0], services.AccessReadOnly)
		if err != nil {
			return err
		}
		defer closeImage(svc, &err)

		mapping, err := svc.Bmap(ctx, ino, uint32(block))
		if err != nil {
			return commandError(fmt.Sprintf("cannot map block %d of inode %d", block, ino), err)
		}
		return ctx.Render(mapping)
	},
}

func init() {
	rootCmd.AddCommand(bmapCmd)
}
