package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/internal/minix"
	"github.com/deploymenttheory/go-minixfs/internal/mkfs"
	"github.com/deploymenttheory/go-minixfs/pkg/app"
	"github.com/deploymenttheory/go-minixfs/pkg/services"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string
	noColor      bool
)

var rootCmd = &cobra.Command{
	Use:   "minixfs",
	Short: "Inspect and modify MINIX V1 filesystem images",
	Long: `minixfs mounts MINIX V1 filesystem images in-process and works on them
at the inode and block level, without kernel support.

Images are opened read-only unless a command needs to write or the
configuration says otherwise.

Commands:
  info        Show the superblock, mount state and usage
  stat        Decode an inode
  bmap        Resolve a logical block of an inode
  cat         Copy the data of an inode to stdout
  write       Write a file into an inode
  mkfs        Create an empty filesystem image
  fsck-state  Mark a volume clean or as having errors`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ctx := app.NewContext()
		ctx.NoColor = noColor
		ctx.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", app.FormatTable, "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default searches ./minixfs-config.yaml)")
}

// newContext builds the application context from the global flags
func newContext(cmd *cobra.Command) *app.Context {
	ctx := app.NewContext()
	ctx.Context = cmd.Context()
	ctx.OutputFormat = outputFormat
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.NoColor = noColor
	ctx.ConfigPath = configPath
	ctx.Stdout = cmd.OutOrStdout()
	ctx.Stderr = cmd.ErrOrStderr()
	return ctx
}

// openImage mounts an image with the driver diagnostics going to stderr
func openImage(ctx *app.Context, path string, access services.AccessMode) (services.FilesystemService, error) {
	opts := services.Options{
		ConfigPath: ctx.ConfigPath,
		Access:     access,
		Log:        ctx.Stderr,
	}
	if ctx.Verbose {
		opts.Debug = ctx.Stderr
	}

	ctx.Log("Opening %s", path)
	svc, err := services.Open(ctx, path, opts)
	if err != nil {
		return nil, commandError("cannot open "+path, err)
	}
	return svc, nil
}

// commandError classifies a service error for the CLI
func commandError(message string, err error) error {
	code := app.ErrCodeIO
	switch {
	case errors.Is(err, minix.ErrBadMagic),
		errors.Is(err, minix.ErrBadSuperblock),
		errors.Is(err, minix.ErrBitmapTooLarge):
		code = app.ErrCodeNotFilesystem
	case errors.Is(err, minix.ErrBadInodeNumber),
		errors.Is(err, services.ErrInodeNotInUse):
		code = app.ErrCodeInodeNotFound
	case errors.Is(err, minix.ErrReadOnly):
		code = app.ErrCodeReadOnly
	case errors.Is(err, minix.ErrNoSpace),
		errors.Is(err, minix.ErrFileTooBig):
		code = app.ErrCodeNoSpace
	case errors.Is(err, mkfs.ErrVolumeTooSmall),
		errors.Is(err, mkfs.ErrVolumeTooLarge):
		code = app.ErrCodeInvalidInput
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		code = app.ErrCodeDeviceAccess
	}
	return app.NewError(code, message, err)
}

// parseIno parses an inode number argument
func parseIno(arg string) (uint16, error) {
	n, err := strconv.ParseUint(arg, 10, 16)
	if err != nil || n == 0 {
		return 0, app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("invalid inode number %q", arg), nil)
	}
	return uint16(n), nil
}

// closeImage unmounts svc and keeps the first error
func closeImage(svc services.FilesystemService, err *error) {
	if cerr := svc.Close(); cerr != nil && *err == nil {
		*err = commandError("cannot close image", cerr)
	}
}
