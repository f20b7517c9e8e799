package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/pkg/services"
)

var infoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Show the superblock, mount state and usage of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := newContext(cmd)

		svc, err := openImage(ctx, args[0], services.AccessReadOnly)
		if err != nil {
			return err
		}
		defer closeImage(svc, &err)

		info, err := svc.Info(ctx)
		if err != nil {
			return commandError("cannot read volume info", err)
		}
		return ctx.Render(info)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
