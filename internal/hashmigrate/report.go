package hashmigrate

import "atelier/internal/fingerprint"

// Pair maps a pool file's old fingerprint to its new one and records what
// each stage did with it.
type Pair struct {
	Old       string `json:"old"`
	New       string `json:"new"`
	File      string `json:"file"`
	Thumbnail string `json:"thumbnail"`
	Row       string `json:"row"`
}

// Row actions recorded on a Pair.
const (
	RowRekeyed   = "rekeyed"
	RowDropped   = "dropped_old"
	RowCreated   = "created"
	RowUnchanged = "unchanged"
)

// Failure is a file or pair a stage could not process. The run continues
// past failures.
type Failure struct {
	Fingerprint string `json:"fingerprint"`
	Stage       string `json:"stage"`
	Error       string `json:"error"`
}

// Report holds per-stage counts. In a dry run the counts describe what
// would have changed.
type Report struct {
	From   fingerprint.Algorithm `json:"from"`
	To     fingerprint.Algorithm `json:"to"`
	DryRun bool                  `json:"dry_run"`

	Scanned               int   `json:"scanned"`
	Hashed                int   `json:"hashed"`
	Resumed               int   `json:"resumed"`
	FilesRenamed          int   `json:"files_renamed"`
	FilesDeduplicated     int   `json:"files_deduplicated"`
	ThumbnailsRenamed     int   `json:"thumbnails_renamed"`
	CharacterReplacements int   `json:"character_replacements"`
	LibraryReplacements   int   `json:"library_replacements"`
	RowsRekeyed           int   `json:"rows_rekeyed"`
	RowsDropped           int   `json:"rows_dropped"`
	RowsCreated           int   `json:"rows_created"`
	VersionsRekeyed       int64 `json:"versions_rekeyed"`

	Pairs    []Pair    `json:"pairs"`
	Failures []Failure `json:"failures,omitempty"`
}

// RowsTouched is the number of asset rows the reconcile stage changed.
func (r Report) RowsTouched() int {
	return r.RowsRekeyed + r.RowsDropped + r.RowsCreated
}

func (r *Report) fail(fp, stage string, err error) {
	r.Failures = append(r.Failures, Failure{Fingerprint: fp, Stage: stage, Error: err.Error()})
}
