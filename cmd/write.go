package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/pkg/app"
	"github.com/deploymenttheory/go-minixfs/pkg/services"
)

var writeOffset int64

var writeCmd = &cobra.Command{
	Use:   "write <image> <inode> <file>",
	Short: "Write a file into an inode, allocating blocks as needed",
	Long: `Write the contents of a local file (or stdin for "-") into an existing
inode. The image is mounted read-write for the duration of the command and
marked clean again when it is unmounted.

Examples:
  # Replace the start of inode 12 with notes.txt
  minixfs write disk.img 12 notes.txt

  # Append at byte 4096 from stdin
  echo hello | minixfs write disk.img 12 - --offset 4096`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := newContext(cmd)

		ino, err := parseIno(args[1])
		if err != nil {
			return err
		}
		if writeOffset < 0 {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("invalid offset %d", writeOffset), nil)
		}

		var src io.Reader = cmd.InOrStdin()
		if args[2] != "-" {
			f, oerr := os.Open(args[2])
			if oerr != nil {
				return app.NewError(app.ErrCodeInvalidInput, "cannot open "+args[2], oerr)
			}
			defer f.Close()
			src = f
		}

		svc, err := openImage(ctx, args[0], services.AccessReadWrite)
		if err != nil {
			return err
		}
		defer closeImage(svc, &err)

		n, err := svc.WriteFile(ctx, ino, src, writeOffset)
		if err != nil {
			return commandError(fmt.Sprintf("cannot write inode %d after %d bytes", ino, n), err)
		}
		ctx.Info("Wrote %s to inode %d", app.FormatBytes(n), ino)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)

	writeCmd.Flags().Int64Var(&writeOffset, "offset", 0, "byte offset to start writing at")
}
