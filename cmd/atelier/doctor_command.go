package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"atelier/internal/coordinator"
	"atelier/internal/preflight"
	"atelier/internal/services"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the data directory and cross-check every store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg)

			var audit coordinator.AuditReport
			auditErr := ctx.withData(lockShared, func(env *dataEnv) error {
				var err error
				audit, err = env.coordinator().Audit(cmd.Context())
				return err
			})

			if jsonOutput {
				payload := map[string]any{"checks": checks, "audit": audit}
				if auditErr != nil {
					payload["audit_error"] = auditErr.Error()
				}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				sw := newStatusWriter(cmd.OutOrStdout())
				printChecks(sw, checks)
				if auditErr == nil {
					printAudit(sw, audit)
				}
			}

			switch {
			case auditErr != nil:
				return auditErr
			case len(preflight.Failed(checks)) > 0:
				return services.Wrap(services.ErrValidation, "cli", "doctor", fmt.Sprintf("%d check(s) failed", len(preflight.Failed(checks))), nil)
			case !audit.Clean():
				return services.Wrap(services.ErrInvalidState, "cli", "doctor", "stores are inconsistent", nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printChecks(sw *statusWriter, checks []preflight.Result) {
	sw.section("Data directory")
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		sw.line(check.Name, kind, check.Detail)
	}
	sw.blank()
}

func printAudit(sw *statusWriter, audit coordinator.AuditReport) {
	sw.section("Consistency")
	sw.line("Asset rows", statusOK, strconv.Itoa(audit.Rows))
	sw.line("Pool files", statusOK, strconv.Itoa(audit.PoolFiles))
	auditLine(sw, "Missing files", audit.MissingFiles, statusError)
	auditLine(sw, "Orphan files", audit.OrphanFiles, statusWarn)
	auditLine(sw, "Character refs", audit.DanglingCharRef, statusError)
	auditLine(sw, "Library refs", audit.DanglingLibRef, statusError)
}

func auditLine(sw *statusWriter, label string, fps []string, failKind statusKind) {
	if len(fps) == 0 {
		sw.line(label, statusOK, "none")
		return
	}
	sw.line(label, failKind, strconv.Itoa(len(fps)))
	for _, fp := range fps {
		sw.detail(fp)
	}
}
