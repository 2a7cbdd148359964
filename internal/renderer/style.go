package renderer

import (
	"context"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/coco/internal/errors"
)

// DefaultEngines are the browsers the generated CSS must run on.
var DefaultEngines = []api.Engine{
	{Name: api.EngineChrome, Version: "100"},
	{Name: api.EngineFirefox, Version: "100"},
	{Name: api.EngineSafari, Version: "15"},
}

// Stylesheet is the output of a stylesheet render.
type Stylesheet struct {
	CSS string
}

// StyleRenderer renders style sections with esbuild.
type StyleRenderer struct {
	Minify  bool
	Engines []api.Engine
}

// NewStyleRenderer creates a stylesheet renderer targeting DefaultEngines.
func NewStyleRenderer(minify bool) *StyleRenderer {
	return &StyleRenderer{Minify: minify, Engines: DefaultEngines}
}

// RenderStylesheet transforms body into browser CSS. Less variables and line
// comments are resolved first; every esbuild error or warning is a fault, as
// esbuild recovers from input it cannot read by passing it through.
// filename is used in messages only.
func (r *StyleRenderer) RenderStylesheet(ctx context.Context, body, filename string) (*Stylesheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := newLessPreprocessor(body).process()
	if err != nil {
		return nil, err
	}

	result := api.Transform(source, api.TransformOptions{
		Loader:           api.LoaderCSS,
		Sourcefile:       filename,
		MinifyWhitespace: r.Minify,
		Engines:          r.Engines,
		LogLevel:         api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		return nil, stylesheetFault(body, result.Errors[0])
	}

	if len(result.Warnings) > 0 {
		return nil, stylesheetFault(body, result.Warnings[0])
	}

	return &Stylesheet{CSS: strings.TrimRight(string(result.Code), "\n")}, nil
}

// stylesheetFault maps an esbuild message to a fault. esbuild columns are
// 0-based; faults use 1-based columns.
func stylesheetFault(body string, msg api.Message) *errors.Fault {
	line, column := 0, 0
	if msg.Location != nil {
		line = msg.Location.Line
		column = msg.Location.Column + 1
	}
	return errors.NewStylesheetFault("Syntax", msg.Text, line, column, extract(body, line))
}
