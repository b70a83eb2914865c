package assetstore

import "time"

// State is an asset's lifecycle state.
type State string

const (
	StateActive  State = "active"
	StateTrashed State = "trashed"
)

// Asset is the canonical record for one piece of pooled content.
type Asset struct {
	ID            string    `json:"id"`
	Fingerprint   string    `json:"fingerprint"`
	Name          string    `json:"name"`
	FilePath      string    `json:"file_path"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	FileSize      int64     `json:"file_size"`
	Category      string    `json:"category,omitempty"`
	CharacterName string    `json:"character_name,omitempty"`
	ZIndex        int       `json:"z_index"`
	State         State     `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	// PurgePending is set once a purge cascade has started. Such an asset
	// can only be purged again, never restored.
	PurgePending bool `json:"purge_pending,omitempty"`
}

// Trashed reports whether the asset has been soft-deleted.
func (a *Asset) Trashed() bool {
	return a != nil && a.State == StateTrashed
}

// Version is one entry of an asset's append-only history.
type Version struct {
	ID          string    `json:"id"`
	AssetID     string    `json:"asset_id"`
	Version     int       `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	FilePath    string    `json:"file_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// Metadata describes a new asset row.
type Metadata struct {
	Name          string
	FilePath      string
	ThumbnailPath string
	Width         int
	Height        int
	FileSize      int64
	Category      string
	CharacterName string
	ZIndex        int
}

// Filter narrows Search results. Zero values match everything.
type Filter struct {
	// Name matches a case-insensitive substring of the display name.
	Name     string
	Category string
	// Character matches a case-insensitive substring of the character tag.
	Character      string
	ZIndex         *int
	IncludeTrashed bool
	// Limit caps the result count; zero uses the store's page size.
	Limit int
}
