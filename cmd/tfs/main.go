package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/fsops"
	"github.com/tinytfs/tfs/internal/fuseadapter"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/profiles"
	"github.com/tinytfs/tfs/internal/superblock"
)

func main() {
	app := &cli.App{
		Name:  "tfs",
		Usage: "Create and mount Tiny File System images",
		Commands: []*cli.Command{
			formatCommand(),
			mountCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("tfs: %s", err)
	}
}

func formatCommand() *cli.Command {
	return &cli.Command{
		Name:      "format",
		Usage:     "Create or wipe a TFS image file",
		ArgsUsage: "IMAGE_FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "profile",
				Usage: fmt.Sprintf("named image size preset (%v)", profiles.Names()),
				Value: profiles.DefaultSlug,
			},
		},
		Action: runFormat,
	}
}

func runFormat(ctx *cli.Context) error {
	if err := validateFormatArgs(ctx); err != nil {
		return err
	}

	profile, err := profiles.Get(ctx.String("profile"))
	if err != nil {
		return err
	}

	path := ctx.Args().First()
	dev, err := block.Init(path, uint32(layout.ImageSizeBlocks(profile.DataBlocks)))
	if err != nil {
		return fmt.Errorf("formatting %s: %w", path, err)
	}
	defer dev.Close()

	if err := superblock.Format(dev); err != nil {
		return fmt.Errorf("formatting %s: %w", path, err)
	}

	log.Printf("formatted %s with profile %q (%d data blocks)", path, profile.Slug, profile.DataBlocks)
	return nil
}

func validateFormatArgs(ctx *cli.Context) error {
	var result *multierror.Error
	if ctx.NArg() != 1 {
		result = multierror.Append(result, fmt.Errorf("expected exactly one argument, the image path"))
	}
	if _, err := profiles.Get(ctx.String("profile")); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func mountCommand() *cli.Command {
	return &cli.Command{
		Name:      "mount",
		Usage:     "Mount a TFS image at a directory using FUSE",
		ArgsUsage: "IMAGE_FILE MOUNTPOINT",
		Action:    runMount,
	}
}

func runMount(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("expected two arguments: IMAGE_FILE MOUNTPOINT")
	}

	imagePath := ctx.Args().Get(0)
	mountPoint := ctx.Args().Get(1)

	fs, err := fsops.Mount(imagePath)
	if err != nil {
		return fmt.Errorf("mounting %s: %w", imagePath, err)
	}
	defer fs.Close()

	adapter := fuseadapter.New(fs)
	nodeFs := pathfs.NewPathNodeFs(adapter, nil)

	server, _, err := nodefs.MountRoot(mountPoint, nodeFs.Root(), nil)
	if err != nil {
		return fmt.Errorf("mounting FUSE at %s: %w", mountPoint, err)
	}

	log.Printf("mounted %s at %s", imagePath, mountPoint)
	server.Serve()
	return nil
}
