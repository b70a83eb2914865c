package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"atelier/internal/ingest"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var displayName string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Decompose layered documents into pooled assets",
		Long: "Decompose .psd and .ora documents into one asset per leaf layer.\n" +
			"Each document becomes a character named after the file unless --name is given.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(displayName) != "" && len(args) > 1 {
				return fmt.Errorf("--name applies to a single document")
			}
			runCtx, stop := signalContext(cmd)
			defer stop()

			return ctx.withData(lockShared, func(env *dataEnv) error {
				svc, err := ingest.New(env.cfg, env.store, env.pool, env.characters, env.logger)
				if err != nil {
					return err
				}
				uploads := make([]ingest.Upload, 0, len(args))
				for _, arg := range args {
					uploads = append(uploads, ingest.Upload{Path: arg, DisplayName: displayName})
				}
				outcomes := svc.ImportBatch(runCtx, uploads)

				failed := 0
				var firstErr error
				for _, o := range outcomes {
					if !o.OK() {
						failed++
						if firstErr == nil {
							firstErr = o.Err
						}
					}
				}
				if jsonOutput {
					if err := writeJSON(cmd, map[string]any{"outcomes": outcomes}); err != nil {
						return err
					}
				} else {
					printImportOutcomes(cmd, outcomes)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d document(s) failed to import: %w", failed, len(outcomes), firstErr)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "Character name for the imported document")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printImportOutcomes(cmd *cobra.Command, outcomes []ingest.Outcome) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		character, status := "", "ok"
		if o.Character != nil {
			character = o.Character.Name
		}
		switch {
		case !o.OK():
			status = fmt.Sprintf("error [%s]", o.ErrorCode)
		case len(o.Skipped) > 0:
			status = fmt.Sprintf("partial (%d skipped)", len(o.Skipped))
		}
		rows = append(rows, []string{
			o.Document,
			character,
			fmt.Sprintf("%d", o.Layers),
			fmt.Sprintf("%d", o.NewAssets),
			status,
		})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Document", "Character", "Layers", "New", "Status"}, rows, 2, 3))

	for _, o := range outcomes {
		if !o.OK() {
			fmt.Fprintf(out, "%s: %s\n", o.Document, o.Error)
		}
		for _, skipped := range o.Skipped {
			fmt.Fprintf(out, "%s: skipped layer %s: %s\n", o.Document, skipped.Path, skipped.Reason)
		}
	}
}
