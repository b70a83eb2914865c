package main

import (
	"fmt"
	"image"
	_ "image/png"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"atelier/internal/assetpool"
	"atelier/internal/assetstore"
	"atelier/internal/fingerprint"
	"atelier/internal/services"
)

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Inspect and curate pooled assets",
	}

	assetsCmd.AddCommand(newAssetsSearchCommand(ctx))
	assetsCmd.AddCommand(newAssetsShowCommand(ctx))
	assetsCmd.AddCommand(newAssetsTrashCommand(ctx))
	assetsCmd.AddCommand(newAssetsRestoreCommand(ctx))
	assetsCmd.AddCommand(newAssetsPurgeCommand(ctx))
	assetsCmd.AddCommand(newAssetsTrashListCommand(ctx))
	assetsCmd.AddCommand(newAssetsVersionsCommand(ctx))
	assetsCmd.AddCommand(newAssetsAddVersionCommand(ctx))

	return assetsCmd
}

func newAssetsSearchCommand(ctx *commandContext) *cobra.Command {
	var filter assetstore.Filter
	var zIndex int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search assets by name, category, character, or z-index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("z-index") {
				filter.ZIndex = &zIndex
			}
			return ctx.withData(lockShared, func(env *dataEnv) error {
				assets, err := env.store.Search(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"assets": assets})
				}
				printAssetTable(cmd.OutOrStdout(), assets)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Name, "name", "", "Substring of the display name")
	cmd.Flags().StringVar(&filter.Category, "category", "", "Exact category")
	cmd.Flags().StringVar(&filter.Character, "character", "", "Substring of the character name")
	cmd.Flags().IntVar(&zIndex, "z-index", 0, "Exact z-index")
	cmd.Flags().BoolVar(&filter.IncludeTrashed, "include-trashed", false, "Include trashed assets")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum results (default from search.page_size)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newAssetsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <fingerprint>",
		Short: "Show one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				asset, err := env.store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, asset)
				}
				printAssetDetail(cmd.OutOrStdout(), asset, env.pool.Exists(asset.Fingerprint))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newAssetsTrashCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trash <fingerprint>",
		Short: "Move an asset to the trash (file and references are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				asset, err := env.coordinator().SoftDelete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %s trashed\n", asset.Fingerprint)
				return nil
			})
		},
	}
}

func newAssetsRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <fingerprint>",
		Short: "Restore a trashed asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				asset, err := env.coordinator().Restore(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %s restored\n", asset.Fingerprint)
				return nil
			})
		},
	}
}

func newAssetsPurgeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "purge <fingerprint>",
		Short: "Permanently delete a trashed asset from every store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				report, err := env.coordinator().Purge(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Asset %s purged\n", report.Fingerprint)
				fmt.Fprintf(out, "  file removed:      %s\n", yesNo(report.FileRemoved))
				fmt.Fprintf(out, "  thumbnail removed: %s\n", yesNo(report.ThumbnailRemoved))
				fmt.Fprintf(out, "  character refs:    %d\n", report.CharacterRefs)
				fmt.Fprintf(out, "  library refs:      %d\n", report.LibraryRefs)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newAssetsTrashListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "trash-list",
		Short: "List trashed assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				assets, err := env.store.ListTrash(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"assets": assets})
				}
				printAssetTable(cmd.OutOrStdout(), assets)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newAssetsVersionsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "versions <fingerprint>",
		Short: "List an asset's version history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				versions, err := env.store.ListVersions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"versions": versions})
				}
				out := cmd.OutOrStdout()
				if len(versions) == 0 {
					fmt.Fprintln(out, "No versions recorded")
					return nil
				}
				rows := make([][]string, 0, len(versions))
				for _, v := range versions {
					rows = append(rows, []string{strconv.Itoa(v.Version), v.Fingerprint, v.FilePath, formatTimestamp(v.CreatedAt)})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Version", "Fingerprint", "File", "Created"}, rows, 0))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newAssetsAddVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-version <fingerprint> <image.png>",
		Short: "Pool an image and record it as the asset's next version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				img, err := decodeImageFile(args[1])
				if err != nil {
					return err
				}
				alg, err := fingerprint.ParseAlgorithm(env.cfg.Hashing.Algorithm)
				if err != nil {
					return services.Wrap(services.ErrValidation, "cli", "add version", "hashing algorithm", err)
				}
				versionFP, err := fingerprint.New(alg).HashImage(img)
				if err != nil {
					return err
				}
				if _, err := env.store.Get(cmd.Context(), args[0]); err != nil {
					return err
				}
				if _, _, err := env.pool.Store(versionFP, img); err != nil {
					return err
				}
				version, err := env.store.AppendVersion(cmd.Context(), args[0], versionFP, assetpool.RelPath(versionFP))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded version %d (%s)\n", version.Version, versionFP)
				return nil
			})
		},
	}
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIOFailure, "cli", "read image", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "cli", "read image", path, err)
	}
	return img, nil
}

func printAssetTable(out io.Writer, assets []*assetstore.Asset) {
	if len(assets) == 0 {
		fmt.Fprintln(out, "No assets found")
		return
	}
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		rows = append(rows, []string{
			shortFingerprint(a.Fingerprint),
			a.Name,
			a.CharacterName,
			a.Category,
			fmt.Sprintf("%dx%d", a.Width, a.Height),
			string(a.State),
		})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Fingerprint", "Name", "Character", "Category", "Size", "State"}, rows, 4))
}

func printAssetDetail(out io.Writer, a *assetstore.Asset, fileExists bool) {
	fmt.Fprintf(out, "Fingerprint: %s\n", a.Fingerprint)
	fmt.Fprintf(out, "Name:        %s\n", a.Name)
	fmt.Fprintf(out, "State:       %s\n", a.State)
	fmt.Fprintf(out, "File:        %s (present: %s)\n", a.FilePath, yesNo(fileExists))
	if a.ThumbnailPath != "" {
		fmt.Fprintf(out, "Thumbnail:   %s\n", a.ThumbnailPath)
	}
	fmt.Fprintf(out, "Dimensions:  %dx%d, %d bytes\n", a.Width, a.Height, a.FileSize)
	if a.CharacterName != "" {
		fmt.Fprintf(out, "Character:   %s\n", a.CharacterName)
	}
	if a.Category != "" {
		fmt.Fprintf(out, "Category:    %s (z %d)\n", a.Category, a.ZIndex)
	}
	fmt.Fprintf(out, "Created:     %s\n", formatTimestamp(a.CreatedAt))
	fmt.Fprintf(out, "Updated:     %s\n", formatTimestamp(a.UpdatedAt))
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
