package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/relisted/internal/cli"
	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/config"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/profiles"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage deduplication profiles",
		Long: `Manage the named, versioned parameter sets that drive matching.

Each tenant has exactly one active profile. The "default" profile is created
the first time a tenant needs one.`,
	}

	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configListCmd())
	cmd.AddCommand(configSetCmd())
	cmd.AddCommand(configActivateCmd())
	cmd.AddCommand(configDeleteCmd())
	cmd.AddCommand(configExportCmd())
	cmd.AddCommand(configImportCmd())

	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [profile-id]",
		Short: "Show a profile (the active one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			svc := profiles.NewService(store)
			cfg, err := loadProfile(cmd, svc, args)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("Profile %s (v%d)", cfg.Name, cfg.Version)))
			if cfg.IsActive {
				fmt.Println(cli.FormatSuccess("active"))
			}
			return profiles.Export(os.Stdout, cfg)
		},
	}
}

func configListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tenant's profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			svc := profiles.NewService(store)
			tenant := config.Tenant()
			if _, err := svc.Active(ctx, tenant); err != nil {
				return err
			}
			configs, err := svc.List(ctx, tenant)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(configs))
			for _, c := range configs {
				active := ""
				if c.IsActive {
					active = cli.SuccessIcon
				}
				rows = append(rows, []string{
					c.ID, c.Name, strconv.Itoa(c.Version), active,
					fmt.Sprintf("%.2f", c.OverallMatchThreshold),
					fmt.Sprintf("%.2f", c.ReviewThreshold),
				})
			}
			fmt.Println(cli.RenderTable(
				[]string{"ID", "NAME", "VERSION", "ACTIVE", "AUTO", "REVIEW"}, rows))
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <profile-id> <key>=<value>...",
		Short: "Update profile parameters",
		Long: `Update one or more parameters of a profile and bump its version.

Keys use the YAML names shown by "config show", for example:
  relisted config set 5f0c... overall_match_threshold=0.9 price_tolerance=1500`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			svc := profiles.NewService(store)
			cfg, ok, err := svc.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return common.NewUserError(fmt.Sprintf("profile %s not found", args[0]), common.ErrNotFound)
			}

			for _, assignment := range args[1:] {
				if err := applySetting(cfg, assignment); err != nil {
					return err
				}
			}

			warnings, err := svc.Update(ctx, cfg)
			if err != nil {
				return err
			}
			printWarnings(warnings)
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated %s to version %d", cfg.Name, cfg.Version)))
			return nil
		},
	}
}

func configActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <profile-id>",
		Short: "Make a profile the tenant's active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			ok, err := profiles.NewService(store).Activate(ctx, config.Tenant(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return common.NewUserError(fmt.Sprintf("profile %s not found", args[0]), common.ErrNotFound)
			}
			fmt.Println(cli.FormatSuccess("Activated " + args[0]))
			return nil
		},
	}
}

func configDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <profile-id>",
		Short: "Delete an inactive profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			ok, err := profiles.NewService(store).Delete(ctx, args[0])
			if errors.Is(err, profiles.ErrActiveProfile) {
				return common.NewUserError("activate another profile before deleting this one", err)
			}
			if err != nil {
				return err
			}
			if !ok {
				return common.NewUserError(fmt.Sprintf("profile %s not found", args[0]), common.ErrNotFound)
			}
			fmt.Println(cli.FormatSuccess("Deleted " + args[0]))
			return nil
		},
	}
}

func configExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [profile-id]",
		Short: "Write a profile as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			cfg, err := loadProfile(cmd, profiles.NewService(store), args)
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("output")
			if out == "" || out == "-" {
				return profiles.Export(os.Stdout, cfg)
			}
			f, err := os.Create(config.ExpandPath(out))
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer func() { _ = f.Close() }()
			if err := profiles.Export(f, cfg); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Exported " + cfg.Name + " to " + out))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	return cmd
}

func configImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create a profile from YAML",
		Long: `Create a new profile from a YAML document. Parameters missing from the
document keep their default values.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(config.ExpandPath(args[0]))
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			cfg, warnings, err := profiles.Import(f, config.Tenant())
			if err != nil {
				return common.NewUserError("profile is invalid", err)
			}
			if name, _ := cmd.Flags().GetString("name"); name != "" {
				cfg.Name = name
			}
			cfg.IsActive, _ = cmd.Flags().GetBool("activate")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if _, err := profiles.NewService(store).Create(ctx, cfg); err != nil {
				if errors.Is(err, common.ErrDuplicateEntry) {
					return common.NewUserError(fmt.Sprintf("a profile named %q already exists", cfg.Name), err)
				}
				return err
			}
			printWarnings(warnings)
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %s as %s", cfg.Name, cfg.ID)))
			return nil
		},
	}
	cmd.Flags().String("name", "", "override the profile name from the file")
	cmd.Flags().Bool("activate", false, "make the imported profile active")
	return cmd
}

func loadProfile(cmd *cobra.Command, svc *profiles.Service, args []string) (*model.DeduplicationConfig, error) {
	ctx := cmd.Context()
	if len(args) == 0 {
		return svc.Active(ctx, config.Tenant())
	}
	cfg, ok, err := svc.Get(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NewUserError(fmt.Sprintf("profile %s not found", args[0]), common.ErrNotFound)
	}
	return cfg, nil
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Println(cli.FormatWarning(w))
	}
}

// applySetting assigns one key=value pair to the matching profile field.
func applySetting(cfg *model.DeduplicationConfig, assignment string) error {
	key, raw, ok := strings.Cut(assignment, "=")
	if !ok {
		return common.NewUserError(fmt.Sprintf("expected key=value, got %q", assignment), common.ErrInvalidConfig)
	}
	key = strings.TrimSpace(key)
	raw = strings.TrimSpace(raw)

	if key == "name" {
		cfg.Name = raw
		return nil
	}

	if field, ok := intFields(cfg)[key]; ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return common.NewUserError(fmt.Sprintf("%s must be an integer", key), err)
		}
		*field = v
		return nil
	}
	if field, ok := floatFields(cfg)[key]; ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return common.NewUserError(fmt.Sprintf("%s must be a number", key), err)
		}
		*field = v
		return nil
	}
	return common.NewUserError(fmt.Sprintf("unknown setting %q", key), common.ErrInvalidConfig)
}

func intFields(cfg *model.DeduplicationConfig) map[string]*int {
	return map[string]*int{
		"year_tolerance":    &cfg.YearTolerance,
		"ngram_size":        &cfg.NGramSize,
		"hamming_threshold": &cfg.HammingThreshold,
	}
}

func floatFields(cfg *model.DeduplicationConfig) map[string]*float64 {
	return map[string]*float64{
		"overall_match_threshold":        &cfg.OverallMatchThreshold,
		"review_threshold":               &cfg.ReviewThreshold,
		"vin_weight":                     &cfg.VINWeight,
		"title_weight":                   &cfg.TitleWeight,
		"price_weight":                   &cfg.PriceWeight,
		"mileage_weight":                 &cfg.MileageWeight,
		"location_weight":                &cfg.LocationWeight,
		"image_weight":                   &cfg.ImageWeight,
		"mileage_tolerance":              &cfg.MileageTolerance,
		"price_tolerance":                &cfg.PriceTolerance,
		"location_tolerance_km":          &cfg.LocationToleranceKm,
		"title_attribute_weight":         &cfg.TitleAttributeWeight,
		"title_jaro_winkler_weight":      &cfg.TitleJaroWinklerWeight,
		"title_ngram_weight":             &cfg.TitleNGramWeight,
		"title_only_jaro_winkler_weight": &cfg.TitleOnlyJaroWinklerWeight,
		"title_only_ngram_weight":        &cfg.TitleOnlyNGramWeight,
		"vin_override_floor":             &cfg.VINOverrideFloor,
	}
}
