package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/deploymenttheory/go-minixfs/pkg/services"
)

var (
	stateClean  bool
	stateErrors bool
)

var fsckStateCmd = &cobra.Command{
	Use:   "fsck-state <image>",
	Short: "Mark a volume clean or as having errors",
	Long: `Set the state recorded in the superblock, the way a checker does after
it has run. --clean marks the volume valid, --errors marks it as having
errors so the next mount warns about it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := newContext(cmd)

		state := types.StateValid
		if stateErrors {
			state = types.StateValid | types.StateError
		}

		svc, err := openImage(ctx, args[0], services.AccessReadWrite)
		if err != nil {
			return err
		}
		defer closeImage(svc, &err)

		if err := svc.SetState(ctx, state); err != nil {
			return commandError("cannot set volume state", err)
		}
		ctx.Info("%s marked %s", args[0], services.StateString(state))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fsckStateCmd)

	fsckStateCmd.Flags().BoolVar(&stateClean, "clean", false, "mark the volume valid")
	fsckStateCmd.Flags().BoolVar(&stateErrors, "errors", false, "mark the volume as having errors")
	fsckStateCmd.MarkFlagsMutuallyExclusive("clean", "errors")
	fsckStateCmd.MarkFlagsOneRequired("clean", "errors")
}
