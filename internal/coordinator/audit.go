package coordinator

import (
	"context"
	"sort"

	"atelier/internal/assetstore"
)

// AuditReport lists inconsistencies between the stores. It is read-only.
type AuditReport struct {
	Rows            int      `json:"rows"`
	PoolFiles       int      `json:"pool_files"`
	MissingFiles    []string `json:"missing_files,omitempty"`
	OrphanFiles     []string `json:"orphan_files,omitempty"`
	DanglingCharRef []string `json:"dangling_character_refs,omitempty"`
	DanglingLibRef  []string `json:"dangling_library_refs,omitempty"`
}

// Clean reports whether no inconsistency was found.
func (r AuditReport) Clean() bool {
	return len(r.MissingFiles) == 0 && len(r.OrphanFiles) == 0 &&
		len(r.DanglingCharRef) == 0 && len(r.DanglingLibRef) == 0
}

// Audit cross-checks rows, pool files, and index refs:
//   - active rows whose pool file is missing,
//   - pool files with neither a row nor a history entry,
//   - index refs to fingerprints with no row.
func (c *Coordinator) Audit(ctx context.Context) (AuditReport, error) {
	rows, err := c.store.ListFingerprints(ctx)
	if err != nil {
		return AuditReport{}, err
	}
	versions, err := c.store.VersionFingerprints(ctx)
	if err != nil {
		return AuditReport{}, err
	}
	files, err := c.pool.Scan(nil)
	if err != nil {
		return AuditReport{}, err
	}

	report := AuditReport{Rows: len(rows), PoolFiles: len(files)}
	onDisk := make(map[string]struct{}, len(files))
	for _, fp := range files {
		onDisk[fp] = struct{}{}
		_, recorded := rows[fp]
		_, versioned := versions[fp]
		if !recorded && !versioned {
			report.OrphanFiles = append(report.OrphanFiles, fp)
		}
	}
	for fp, state := range rows {
		if _, ok := onDisk[fp]; !ok && state == assetstore.StateActive {
			report.MissingFiles = append(report.MissingFiles, fp)
		}
	}
	for fp := range c.characters.Fingerprints() {
		if _, ok := rows[fp]; !ok {
			report.DanglingCharRef = append(report.DanglingCharRef, fp)
		}
	}
	for fp := range c.library.Fingerprints() {
		if _, ok := rows[fp]; !ok {
			report.DanglingLibRef = append(report.DanglingLibRef, fp)
		}
	}
	sort.Strings(report.MissingFiles)
	sort.Strings(report.DanglingCharRef)
	sort.Strings(report.DanglingLibRef)
	return report, nil
}
