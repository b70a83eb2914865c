package config

const (
	defaultDataDir           = "~/.local/share/atelier"
	defaultLogDir            = "~/.local/share/atelier/logs"
	defaultCharactersIndex   = "characters.json"
	defaultLibraryIndex      = "library.json"
	defaultDatabase          = "atelier.db"
	defaultHashAlgorithm     = "sha256"
	defaultLegacyAlgorithm   = "md5"
	defaultDecomposeWorkers  = 3
	defaultGroupName         = "Root"
	defaultThumbnailsEnabled = true
	defaultThumbnailMaxEdge  = 256
	defaultSearchPageSize    = 200
	maxSearchPageSize        = 1000
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

var defaultAllowedExtensions = []string{".psd", ".ora"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:         defaultDataDir,
			LogDir:          defaultLogDir,
			CharactersIndex: defaultCharactersIndex,
			LibraryIndex:    defaultLibraryIndex,
			Database:        defaultDatabase,
		},
		Hashing: Hashing{
			Algorithm:       defaultHashAlgorithm,
			LegacyAlgorithm: defaultLegacyAlgorithm,
		},
		Decompose: Decompose{
			Workers:           defaultDecomposeWorkers,
			DefaultGroup:      defaultGroupName,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Thumbnails: Thumbnails{
			Enabled: defaultThumbnailsEnabled,
			MaxEdge: defaultThumbnailMaxEdge,
		},
		Search: Search{
			PageSize: defaultSearchPageSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
