package assets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var (
	// ErrEntryNotFound indicates an entry point does not exist on disk
	ErrEntryNotFound = errors.New("entry point not found")
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("esbuild failed with errors")
	// ErrNotBuilt indicates metadata was requested before a successful build
	ErrNotBuilt = errors.New("assets not built yet, call Build() first")
	// ErrTemplate indicates the HTML shell template could not be loaded or rendered
	ErrTemplate = errors.New("html template failed")
)

// BuildError carries the esbuild messages of a failed build step
type BuildError struct {
	Step     string
	Messages []api.Message
}

func (e *BuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s build: %d error(s)", e.Step, len(e.Messages))
	for _, msg := range e.Messages {
		b.WriteString("\n")
		b.WriteString(formatMessage(msg))
	}
	return b.String()
}

func (e *BuildError) Unwrap() error {
	return ErrBuildFailed
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}
