package assets

import "github.com/evanw/esbuild/pkg/api"

type Config struct {
	// Path to metafile (relative to the output dir)
	MetafilePath string
	// Path to the build manifest (relative to the output dir)
	ManifestPath string
	// Write .gz and .zst siblings for text outputs
	Precompress bool
	// dart-sass executable used for the style pipeline
	SassBinary string
	// Engines the transpile and post-CSS stages lower to
	Engines []api.Engine
	// esbuild log level for build diagnostics
	LogLevel api.LogLevel
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MetafilePath: "meta.json",
		ManifestPath: "manifest.json",
		SassBinary:   "sass",
		Engines:      BroadEngines(),
		LogLevel:     api.LogLevelSilent,
	}
}

// BroadEngines is the broad browser baseline the legacy transpile stage targets.
func BroadEngines() []api.Engine {
	return []api.Engine{
		{Name: api.EngineChrome, Version: "58"},
		{Name: api.EngineEdge, Version: "16"},
		{Name: api.EngineFirefox, Version: "57"},
		{Name: api.EngineSafari, Version: "11"},
	}
}
