package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"inkwell/internal/logging"
)

// Renderer converts one source file to one target file. Render must honor
// context cancellation; RequestInterrupt is a best-effort, idempotent abort
// of whatever render is in flight.
type Renderer interface {
	Render(ctx context.Context, sourcePath, targetPath string) error
	RequestInterrupt()
}

// Family names for fault attribution and logs.
const (
	FamilyWord  = "word"
	FamilyCell  = "cell"
	FamilySlide = "slide"
)

var wordExtensions = extensionSet(
	"doc", "docx", "docm", "dot", "dotx", "dotm",
	"rtf", "odt", "ott", "txt", "html", "mht", "mhtml", "mobi",
)

var cellExtensions = extensionSet(
	"xls", "xlsx", "xlsb", "xlsm", "xlt", "xltx", "xltm",
	"csv", "tsv", "ods", "fods", "sxc",
)

var slideExtensions = extensionSet(
	"ppt", "pptx", "pptm", "pot", "potx", "potm",
	"pps", "ppsx", "ppsm", "odp", "otp",
)

func extensionSet(exts ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[ext] = struct{}{}
	}
	return set
}

// Gateway routes a mission's source file to the renderer for its extension
// family. Presentation formats are routed only when enabled.
type Gateway struct {
	logger *slog.Logger

	word  Renderer
	cell  Renderer
	slide Renderer

	slidesEnabled func() bool
}

// NewGateway wires the per-family renderers. slidesEnabled is consulted per
// dispatch so the setting can change live.
func NewGateway(word, cell, slide Renderer, slidesEnabled func() bool, logger *slog.Logger) *Gateway {
	if slidesEnabled == nil {
		slidesEnabled = func() bool { return false }
	}
	return &Gateway{
		logger:        logging.NewComponentLogger(logger, "render"),
		word:          word,
		cell:          cell,
		slide:         slide,
		slidesEnabled: slidesEnabled,
	}
}

// Supported reports whether a source path would be routed to a renderer.
// Used by ingestion to skip files that would only ever produce ERROR
// missions.
func (g *Gateway) Supported(sourcePath string) bool {
	_, _, err := g.pick(sourcePath)
	return err == nil
}

// Dispatch selects a renderer by extension family and runs the conversion.
// Unknown extensions fail fast with ErrUnsupportedType; renderer failures
// come back wrapped as retriable faults attributed to the family.
func (g *Gateway) Dispatch(ctx context.Context, sourcePath, targetPath string) error {
	renderer, family, err := g.pick(sourcePath)
	if err != nil {
		return err
	}
	g.logger.Debug("dispatching render",
		logging.String("family", family),
		logging.String("source", sourcePath),
	)
	if err := renderer.Render(ctx, sourcePath, targetPath); err != nil {
		// Context errors pass through untouched so the scheduler can tell
		// timeout/cancel apart from renderer trouble.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewFault(family, err)
	}
	return nil
}

// Interrupt forwards a best-effort abort to every renderer family. Safe to
// call repeatedly and while no render is in flight.
func (g *Gateway) Interrupt() {
	for _, renderer := range []Renderer{g.word, g.cell, g.slide} {
		if renderer != nil {
			renderer.RequestInterrupt()
		}
	}
}

func (g *Gateway) pick(sourcePath string) (Renderer, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(sourcePath), "."))
	switch {
	case contains(wordExtensions, ext):
		if g.word == nil {
			return nil, "", fmt.Errorf("%w: no word renderer configured", ErrUnsupportedType)
		}
		return g.word, FamilyWord, nil
	case contains(cellExtensions, ext):
		if g.cell == nil {
			return nil, "", fmt.Errorf("%w: no cell renderer configured", ErrUnsupportedType)
		}
		return g.cell, FamilyCell, nil
	case contains(slideExtensions, ext):
		if !g.slidesEnabled() {
			return nil, "", fmt.Errorf("%w: presentation conversion disabled (.%s)", ErrUnsupportedType, ext)
		}
		if g.slide == nil {
			return nil, "", fmt.Errorf("%w: no slide renderer configured", ErrUnsupportedType)
		}
		return g.slide, FamilySlide, nil
	default:
		return nil, "", fmt.Errorf("%w: .%s", ErrUnsupportedType, ext)
	}
}

func contains(set map[string]struct{}, ext string) bool {
	_, ok := set[ext]
	return ok
}
