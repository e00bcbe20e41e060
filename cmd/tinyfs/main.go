// Command tinyfs mounts a tinyfs image file at a mount point via FUSE
// (SPEC_FULL.md §6). Usage: tinyfs [bridge-flags] <mount-point> <image-file>.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dargueta/tinyfs/bridge"
	"github.com/dargueta/tinyfs/core"
)

func main() {
	app := &cli.App{
		Name:      "tinyfs",
		Usage:     "mount a tinyfs image file",
		ArgsUsage: "<mount-point> <image-file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "foreground", Aliases: []string{"f"}, Usage: "run in the foreground"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "enable FUSE protocol debug logging"},
			&cli.BoolFlag{Name: "single-threaded", Aliases: []string{"s"}, Usage: "serve requests on a single thread"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func run(c *cli.Context) error {
	// Argument count must be in [3, 6): the binary name plus between two
	// and four trailing tokens (bridge flags, mount point, image file).
	if argc := len(os.Args); argc < 3 || argc >= 6 || c.NArg() != 2 {
		return fmt.Errorf("usage: %s [bridge-flags] <mount-point> <image-file>", c.App.Name)
	}

	mountpoint := c.Args().Get(0)
	imagePath := c.Args().Get(1)

	img, err := core.Open(imagePath)
	if err != nil {
		return fmt.Errorf("opening image %q: %w", imagePath, err)
	}
	defer img.Close()

	return bridge.Serve(context.Background(), img, mountpoint, c.Bool("debug"))
}
