package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"atelier/internal/fingerprint"
	"atelier/internal/hashmigrate"
	"atelier/internal/preflight"
	"atelier/internal/services"
)

const migrationJournal = "migrate-hash.journal.json"

func newMigrateHashCommand(ctx *commandContext) *cobra.Command {
	var fromFlag, toFlag string
	var dryRun, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "migrate-hash",
		Short: "Rewrite every fingerprint from one hash algorithm to another",
		Long: "Rename pooled files, rewrite both indexes and rekey asset rows from the legacy\n" +
			"algorithm to the current one. Requires exclusive use of the data directory;\n" +
			"stop any running import before starting. Re-run to finish an interrupted migration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := migrationOptions(fromFlag, toFlag, cfg.Hashing.LegacyAlgorithm, cfg.Hashing.Algorithm, dryRun)
			if err != nil {
				return err
			}
			if check := preflight.CheckDirectoryAccess("Asset pool", cfg.AssetsDir()); !check.Passed && !dryRun {
				return services.Wrap(services.ErrIOFailure, "cli", "migrate-hash", check.Detail, nil)
			}

			runCtx, stop := signalContext(cmd)
			defer stop()

			return ctx.withData(lockExclusive, func(env *dataEnv) error {
				migrator := hashmigrate.New(env.store, env.pool, env.characters, env.library, env.logger,
					hashmigrate.WithJournal(filepath.Join(env.cfg.Paths.DataDir, migrationJournal)))
				report, err := migrator.Run(runCtx, opts)
				if jsonOutput {
					if werr := writeJSON(cmd, report); werr != nil {
						return werr
					}
				} else {
					printMigrationReport(cmd.OutOrStdout(), report)
				}
				if err != nil {
					return err
				}
				if len(report.Failures) > 0 {
					return services.Wrap(services.ErrIOFailure, "cli", "migrate-hash",
						fmt.Sprintf("%d file(s) failed; re-run to retry", len(report.Failures)), nil)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fromFlag, "from", "", "Algorithm to migrate from (default: hashing.legacy_algorithm)")
	cmd.Flags().StringVar(&toFlag, "to", "", "Algorithm to migrate to (default: hashing.algorithm)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report intended changes without modifying anything")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	return cmd
}

func migrationOptions(fromFlag, toFlag, legacy, current string, dryRun bool) (hashmigrate.Options, error) {
	if fromFlag == "" {
		fromFlag = legacy
	}
	if toFlag == "" {
		toFlag = current
	}
	from, err := fingerprint.ParseAlgorithm(fromFlag)
	if err != nil {
		return hashmigrate.Options{}, services.Wrap(services.ErrValidation, "cli", "migrate-hash", "--from", err)
	}
	to, err := fingerprint.ParseAlgorithm(toFlag)
	if err != nil {
		return hashmigrate.Options{}, services.Wrap(services.ErrValidation, "cli", "migrate-hash", "--to", err)
	}
	return hashmigrate.Options{From: from, To: to, DryRun: dryRun}, nil
}

func printMigrationReport(out io.Writer, r hashmigrate.Report) {
	verb := "Migrated"
	if r.DryRun {
		verb = "Dry run: would migrate"
	}
	fmt.Fprintf(out, "%s %d file(s) from %s to %s\n", verb, len(r.Pairs), r.From, r.To)

	rows := [][]string{
		{"Files scanned", strconv.Itoa(r.Scanned)},
		{"Files resumed", strconv.Itoa(r.Resumed)},
		{"Files renamed", strconv.Itoa(r.FilesRenamed)},
		{"  already present", strconv.Itoa(r.FilesDeduplicated)},
		{"Thumbnails renamed", strconv.Itoa(r.ThumbnailsRenamed)},
		{"Character index replacements", strconv.Itoa(r.CharacterReplacements)},
		{"Library index replacements", strconv.Itoa(r.LibraryReplacements)},
		{"Rows rekeyed", strconv.Itoa(r.RowsRekeyed)},
		{"Rows dropped", strconv.Itoa(r.RowsDropped)},
		{"Rows created", strconv.Itoa(r.RowsCreated)},
		{"Versions rekeyed", strconv.FormatInt(r.VersionsRekeyed, 10)},
		{"Failures", strconv.Itoa(len(r.Failures))},
	}
	fmt.Fprintln(out, renderTable(out, []string{"Stage", "Count"}, rows, 1))

	for _, f := range r.Failures {
		fmt.Fprintf(out, "failed %s at %s: %s\n", f.Fingerprint, f.Stage, f.Error)
	}
}
