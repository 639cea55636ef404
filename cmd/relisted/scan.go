package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/relisted/internal/cli"
	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/config"
	"github.com/Veraticus/relisted/internal/dedup"
	"github.com/Veraticus/relisted/internal/events"
	"github.com/Veraticus/relisted/internal/fetch"
	"github.com/Veraticus/relisted/internal/imagematch"
	"github.com/Veraticus/relisted/internal/matching"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/profiles"
	"github.com/Veraticus/relisted/internal/service"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <listings.json>",
		Short: "Run duplicate detection over a file of listings",
		Long: `Run duplicate detection over a JSON array of listings in file order.

Each listing is compared against the listings before it using the tenant's
active profile. Matches, review items and audit entries are stored in the
database. With --images, listing image URLs are fetched and fingerprinted;
fingerprints are cached in the database between runs.`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}
	cmd.Flags().Bool("images", false, "fetch and hash listing images")
	cmd.Flags().Int("concurrency", 0, "candidate scoring workers (default: number of CPUs)")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, err := os.Open(config.ExpandPath(args[0]))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	listings, err := readListings(f)
	_ = f.Close()
	if err != nil {
		return common.NewUserError("listing file is invalid", err)
	}
	if len(listings) == 0 {
		fmt.Println(cli.FormatWarning("No listings to scan"))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	tenant := config.Tenant()
	cfg, err := profiles.NewService(store).Active(ctx, tenant)
	if err != nil {
		return err
	}

	recorder := events.NewRecorder()
	opts := []dedup.Option{
		dedup.WithSink(events.Multi(recorder, events.NewLogSink(slog.Default(), slog.LevelDebug))),
	}
	if withImages, _ := cmd.Flags().GetBool("images"); withImages {
		agg, err := newAggregator(cfg.HammingThreshold)
		if err != nil {
			return err
		}
		opts = append(opts, dedup.WithImages(agg))
	}

	engine := matching.NewEngine()
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		engine = matching.NewEngineWithConcurrency(n)
	}
	detector := dedup.NewDetector(engine, store, opts...)

	var progress *cli.Progress
	if quiet, _ := cmd.Flags().GetBool("no-progress"); !quiet {
		progress = cli.NewProgress(os.Stderr, len(listings), "Scanning listings")
	}

	slog.Info("Starting scan",
		"listings", len(listings),
		"tenant", tenant,
		"profile", cfg.Name,
		"profile_version", cfg.Version)

	var failed []*dedup.Result
	for i := range listings {
		if err := ctx.Err(); err != nil {
			return err
		}
		loadFingerprints(ctx, store, &listings[i])

		res := detector.Detect(ctx, tenant, listings[i], listings[:i], *cfg)
		if !res.Success {
			failed = append(failed, res)
		} else if len(res.ImageHashes) > 0 {
			listings[i].ImageHashes = res.ImageHashes
			if err := store.SaveImageHashes(ctx, listings[i].ID, res.ImageHashes); err != nil {
				slog.Warn("Failed to cache image hashes", "listing_id", listings[i].ID, "error", err)
			}
		}
		if progress != nil {
			progress.Step()
		}
	}
	if progress != nil {
		progress.Finish()
	}

	fields := common.Fields{"listings": len(listings), "failed": len(failed)}
	for eventType, n := range recorder.Count() {
		fields[eventType] = n
	}
	common.LogInfo("Scan finished", fields)

	printScanSummary(len(listings), recorder, failed)
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d listings failed: %w", len(failed), len(listings), errors.Join(failedErrors(failed)...))
	}
	return nil
}

func newAggregator(profileThreshold int) (*imagematch.Aggregator, error) {
	imgOpts, err := config.LoadImageOptions()
	if err != nil {
		return nil, err
	}
	if !viper.IsSet(config.KeyImagesHammingThreshold) {
		imgOpts.HammingThreshold = profileThreshold
	}
	fetchOpts, err := config.LoadFetcherOptions()
	if err != nil {
		return nil, err
	}
	return imagematch.NewAggregator(fetch.NewHTTPFetcher(nil, fetchOpts), imgOpts), nil
}

// loadFingerprints fills in cached image hashes for a listing that arrived without any.
func loadFingerprints(ctx context.Context, store service.FingerprintStore, listing *model.ListingData) {
	if len(listing.ImageHashes) > 0 {
		return
	}
	hashes, err := store.GetImageHashes(ctx, listing.ID)
	if errors.Is(err, common.ErrNotFound) {
		return
	}
	if err != nil {
		slog.Warn("Failed to load cached image hashes", "listing_id", listing.ID, "error", err)
		return
	}
	listing.ImageHashes = hashes
	common.LogDebug("Loaded cached image hashes", common.Fields{
		"listing_id": listing.ID,
		"hashes":     len(hashes),
	})
}

func printScanSummary(total int, recorder *events.Recorder, failed []*dedup.Result) {
	counts := recorder.Count()
	rows := [][]string{
		{"Listings scanned", strconv.Itoa(total)},
		{"Completed", strconv.Itoa(counts[events.TypeDeduplicationCompleted])},
		{"Duplicates found", strconv.Itoa(counts[events.TypeDuplicateFound])},
		{"Review items raised", strconv.Itoa(counts[events.TypeReviewRequired])},
		{"Failed", strconv.Itoa(len(failed))},
	}
	fmt.Println(cli.RenderBox(cli.ChartIcon+" Scan summary", cli.RenderTable([]string{"", "COUNT"}, rows)))

	for _, res := range failed {
		common.LogError(res.Err, "Listing failed", common.Fields{"listing_id": res.ListingID})
		fmt.Println(cli.FormatError(fmt.Sprintf("%s: %s", res.ListingID, res.Message())))
	}
}

func failedErrors(failed []*dedup.Result) []error {
	errs := make([]error, 0, len(failed))
	for _, res := range failed {
		errs = append(errs, res.Err)
	}
	return errs
}
