package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/relisted/internal/cli"
	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/config"
	"github.com/Veraticus/relisted/internal/fetch"
	"github.com/Veraticus/relisted/internal/imagehash"
	"github.com/Veraticus/relisted/internal/imagematch"
)

func hashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash <file-or-url>...",
		Short: "Compute perceptual hashes of images",
		Long: `Compute the 64-bit perceptual hash of each image, given as a local path or an
http(s) URL. With exactly two images the Hamming distance between them is shown.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runHash,
	}
	cmd.Flags().Int("threshold", imagehash.DefaultThreshold, "Hamming distance at or below which images are similar")
	return cmd
}

func runHash(cmd *cobra.Command, args []string) error {
	threshold, _ := cmd.Flags().GetInt("threshold")

	var fetcher imagematch.Fetcher
	hashes := make([]uint64, 0, len(args))
	rows := make([][]string, 0, len(args))

	for _, arg := range args {
		var data []byte
		if isURL(arg) {
			if fetcher == nil {
				opts, err := config.LoadFetcherOptions()
				if err != nil {
					return err
				}
				fetcher = fetch.NewHTTPFetcher(nil, opts)
			}
			outcome := fetcher.Fetch(cmd.Context(), arg)
			if outcome.Status != imagematch.FetchSuccess {
				return common.NewUserError(
					fmt.Sprintf("could not fetch %s: %s", arg, outcome.Status), fmt.Errorf("%w: %s", common.ErrImageFetch, outcome.Reason))
			}
			data = outcome.Body
		} else {
			var err error
			data, err = os.ReadFile(config.ExpandPath(arg))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", arg, err)
			}
		}

		h, err := imagehash.Hash(data)
		if err != nil {
			return common.NewUserError(fmt.Sprintf("%s is not a decodable image", arg), err)
		}
		hashes = append(hashes, h)
		rows = append(rows, []string{arg, fmt.Sprintf("%016x", h), strconv.FormatUint(h, 10)})
	}

	fmt.Println(cli.RenderTable([]string{"IMAGE", "HEX", "DECIMAL"}, rows))

	if len(hashes) == 2 {
		d := imagehash.Distance(hashes[0], hashes[1])
		summary := fmt.Sprintf("Distance %d, similarity %.1f%%", d, imagehash.SimilarityPercentage(hashes[0], hashes[1]))
		if imagehash.IsSimilar(hashes[0], hashes[1], threshold) {
			fmt.Println(cli.FormatSuccess(summary + ", similar"))
		} else {
			fmt.Println(cli.FormatWarning(summary + ", different"))
		}
	}
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
