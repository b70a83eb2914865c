package assetstore

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const assetColumns = "id, fingerprint, name, file_path, thumbnail_path, width, height, file_size, category, character_name, z_index, state, created_at, updated_at, purge_pending"

const versionColumns = "id, asset_id, version, fingerprint, file_path, created_at"

// timeLayout has fixed-width fractional seconds so stored timestamps sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type rowScanner interface{ Scan(dest ...any) error }

func scanAsset(scanner rowScanner) (*Asset, error) {
	var (
		a          Asset
		thumbnail  sql.NullString
		category   sql.NullString
		character  sql.NullString
		state      string
		createdRaw string
		updatedRaw string
		pending    int
	)
	if err := scanner.Scan(
		&a.ID,
		&a.Fingerprint,
		&a.Name,
		&a.FilePath,
		&thumbnail,
		&a.Width,
		&a.Height,
		&a.FileSize,
		&category,
		&character,
		&a.ZIndex,
		&state,
		&createdRaw,
		&updatedRaw,
		&pending,
	); err != nil {
		return nil, err
	}
	a.ThumbnailPath = thumbnail.String
	a.Category = category.String
	a.CharacterName = character.String
	a.State = State(state)
	a.PurgePending = pending != 0
	if created, err := parseTimeString(createdRaw); err == nil {
		a.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		a.UpdatedAt = updated
	}
	return &a, nil
}

func scanVersion(scanner rowScanner) (*Version, error) {
	var (
		v          Version
		createdRaw string
	)
	if err := scanner.Scan(&v.ID, &v.AssetID, &v.Version, &v.Fingerprint, &v.FilePath, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		v.CreatedAt = created
	}
	return &v, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func now() string {
	return formatTime(time.Now())
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// likePattern builds a LIKE substring pattern with wildcards escaped. The
// value is expected to be folded already.
func likePattern(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(value) + "%"
}
