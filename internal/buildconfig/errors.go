package buildconfig

import "errors"

var (
	// ErrUnknownMode indicates a mode string other than development or production
	ErrUnknownMode = errors.New("unknown build mode")
	// ErrStageContract indicates a stage consumes a format its predecessor does not produce
	ErrStageContract = errors.New("stage format contract violated")
	// ErrPluginOrder indicates the plugin list breaks the clean, extract, optimize ordering
	ErrPluginOrder = errors.New("plugin order violated")
)
