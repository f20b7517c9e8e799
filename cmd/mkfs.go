package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/internal/mkfs"
	"github.com/deploymenttheory/go-minixfs/pkg/services"
)

var (
	mkfsBlocks uint32
	mkfsInodes uint32
)

// layout is the table form of a freshly written superblock
type layout struct {
	Image         string `json:"image" yaml:"image"`
	Blocks        uint16 `json:"blocks" yaml:"blocks"`
	Inodes        uint16 `json:"inodes" yaml:"inodes"`
	ImapBlocks    uint16 `json:"imap_blocks" yaml:"imap_blocks"`
	ZmapBlocks    uint16 `json:"zmap_blocks" yaml:"zmap_blocks"`
	FirstDataZone uint16 `json:"first_data_zone" yaml:"first_data_zone"`
}

func (l *layout) Header() []string { return []string{"FIELD", "VALUE"} }

func (l *layout) Rows() [][]string {
	return [][]string{
		{"Image", l.Image},
		{"Blocks", strconv.Itoa(int(l.Blocks))},
		{"Inodes", strconv.Itoa(int(l.Inodes))},
		{"Inode map blocks", strconv.Itoa(int(l.ImapBlocks))},
		{"Zone map blocks", strconv.Itoa(int(l.ZmapBlocks))},
		{"First data zone", strconv.Itoa(int(l.FirstDataZone))},
	}
}

var mkfsCmd = &cobra.Command{
	Use:   "mkfs <image>",
	Short: "Create an image holding an empty filesystem",
	Long: `Create (or overwrite) an image file and lay out an empty MINIX V1
filesystem with a root directory.

Examples:
  # A 1.44MB floppy image
  minixfs mkfs floppy.img --blocks 1440

  # A larger volume with more inodes than the default of blocks/3
  minixfs mkfs disk.img --blocks 20000 --inodes 8192`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := newContext(cmd)

		ctx.Log("Formatting %s with %d blocks", args[0], mkfsBlocks)
		raw, err := services.Format(args[0], mkfs.Options{Blocks: mkfsBlocks, Inodes: mkfsInodes})
		if err != nil {
			return commandError("cannot format "+args[0], err)
		}

		return ctx.Render(&layout{
			Image:         args[0],
			Blocks:        raw.Nzones,
			Inodes:        raw.Ninodes,
			ImapBlocks:    raw.ImapBlocks,
			ZmapBlocks:    raw.ZmapBlocks,
			FirstDataZone: raw.FirstDataZone,
		})
	},
}

func init() {
	rootCmd.AddCommand(mkfsCmd)

	mkfsCmd.Flags().Uint32Var(&mkfsBlocks, "blocks", 1440, "volume size in 1K blocks")
	mkfsCmd.Flags().Uint32Var(&mkfsInodes, "inodes", 0, "number of inodes (default blocks/3)")
}
