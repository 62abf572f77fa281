package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zollek/nvm3/internal/hashid"
	"github.com/zollek/nvm3/nvm3"
)

var (
	verbose     bool
	fingerprint bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nvm3dump <image-file>",
		Short: "Decode an NVM3 flash image and print its live objects.",
		Long: `nvm3dump parses an NVM3 image file, replays its write log, and prints
a summary of each region's pages and live key/value objects.`,
		Args: cobra.ExactArgs(1),
		RunE: run,
	}

	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace page and compaction decisions")
	rootCmd.Flags().BoolVarP(&fingerprint, "fingerprint", "f", false, "print an xxhash fingerprint of each region's live object set")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	buf, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image file: %w", err)
	}

	img, err := nvm3.ParseImage(buf, verbose)
	if err != nil {
		return fmt.Errorf("parsing image: %w", err)
	}

	printRegion(cmd, "application", img.ApplicationPages, img.ApplicationObjects)
	printRegion(cmd, "protocol", img.ProtocolPages, img.ProtocolObjects)

	for _, d := range img.Diagnostics {
		logger.Warn().Str("kind", d.Kind.String()).Uint32("key", d.Key).Msg(d.Message)
	}

	return nil
}

func printRegion(cmd *cobra.Command, name string, pages []nvm3.Page, objects *nvm3.LiveObjects) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s region: %d pages, %d live objects\n", name, len(pages), objects.Len())
	objects.Range(func(key uint32, obj nvm3.Object) bool {
		fmt.Fprintf(cmd.OutOrStdout(), "  key=0x%05x type=%-12s len=%d\n", key, obj.Type, len(obj.Payload))
		return true
	})
	if fingerprint {
		keys := objects.Keys()
		sum := hashid.ObjectSet(keys, func(key uint32) []byte {
			obj, _ := objects.Get(key)
			return obj.Payload
		})
		fmt.Fprintf(cmd.OutOrStdout(), "  fingerprint=%016x\n", sum)
	}
}
