// Command frames converts Ogg Opus audio into the length-prefixed frame
// stream the bridge's test tooling consumes, and inspects existing frame
// files.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/glizzus/voicebridge/internal/opus"
)

func main() {
	app := &cli.App{
		Name:        "frames",
		Description: "Development tool for working with raw Opus frame files",
		Commands: []*cli.Command{
			{
				Name:      "dump",
				Usage:     "Extract raw Opus frames from an Ogg Opus file",
				ArgsUsage: "<input.ogg> <output.frames>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("usage: frames dump <input.ogg> <output.frames>", 1)
					}
					count, err := dump(c.Args().Get(0), c.Args().Get(1))
					if err != nil {
						return cli.Exit("failed to dump frames: "+err.Error(), 1)
					}
					log.Printf("wrote %d frames", count)
					return nil
				},
			},
			{
				Name:      "info",
				Usage:     "Summarize a raw Opus frame file",
				ArgsUsage: "<input.frames>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: frames info <input.frames>", 1)
					}
					if err := info(c.Args().Get(0)); err != nil {
						return cli.Exit("failed to read frames: "+err.Error(), 1)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running frames: %v", err)
	}
}

func dump(inPath, outPath string) (int, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return 0, err
	}

	reader := opus.NewOggFrameReader(in)
	writer := opus.NewFrameWriter(out)
	count := 0
	for {
		frame, err := reader.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			out.Close()
			return count, err
		}
		if err := writer.WriteFrame(frame); err != nil {
			out.Close()
			return count, err
		}
		count++
	}
	return count, out.Close()
}

func info(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	reader := opus.NewFrameReader(in)
	count := 0
	bytes := 0
	for {
		frame, err := reader.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		count++
		bytes += len(frame)
	}

	duration := time.Duration(count) * 20 * time.Millisecond
	fmt.Printf("%d frames, %d bytes, ~%s at 20 ms/frame\n", count, bytes, duration)
	return nil
}
