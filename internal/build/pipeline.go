// Package build compiles single-file components into ES modules and
// schedules those compiles in response to file changes.
//
// Pipeline runs one file through parsing, scoping, rendering, injection and
// assembly, and is the only place faults are reported. Scheduler feeds it
// jobs one at a time, collapsing pending jobs for the same path.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/coco/internal/assembler"
	"github.com/conneroisu/coco/internal/component"
	cerrors "github.com/conneroisu/coco/internal/errors"
	"github.com/conneroisu/coco/internal/logging"
	"github.com/conneroisu/coco/internal/renderer"
	"github.com/conneroisu/coco/internal/scoping"
)

// MarkupRenderer renders a template section to HTML.
type MarkupRenderer interface {
	RenderMarkup(ctx context.Context, body, filename string) (string, error)
}

// StyleRenderer renders a style section to CSS.
type StyleRenderer interface {
	RenderStylesheet(ctx context.Context, body, filename string) (*renderer.Stylesheet, error)
}

// Stage is the step a compile has reached.
type Stage int

const (
	StageIdle Stage = iota
	StageParsing
	StageScoping
	StageRendering
	StageInjecting
	StageAssembling
	StageDone
	StageFailed
)

// String returns the string representation of the Stage
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageParsing:
		return "parsing"
	case StageScoping:
		return "scoping"
	case StageRendering:
		return "rendering"
	case StageInjecting:
		return "injecting"
	case StageAssembling:
		return "assembling"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures a Pipeline.
type Options struct {
	// WorkDir is the base for the relative paths shown on the console.
	WorkDir     string
	SourceExt   string
	OutputExt   string
	ScopePrefix string
	Indent      string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		WorkDir:     ".",
		SourceExt:   ".vue",
		OutputExt:   ".mjs",
		ScopePrefix: scoping.DefaultPrefix,
		Indent:      component.DefaultIndent,
	}
}

// Result describes one finished compile or removal.
type Result struct {
	Source    string
	Output    string
	Component string
	Removed   bool
	Stage     Stage
	// FailedAt is the stage a failed run stopped in.
	FailedAt Stage
	Scope    *scoping.Result
	Duration time.Duration
}

// Pipeline compiles source files into output modules.
type Pipeline struct {
	fs       afero.Fs
	parser   *component.Parser
	scoper   *scoping.Scoper
	markup   MarkupRenderer
	styles   StyleRenderer
	opts     Options
	logger   logging.Logger
	reporter *Reporter
}

// NewPipeline creates a pipeline. A nil reporter discards console output.
func NewPipeline(fsys afero.Fs, markup MarkupRenderer, styles StyleRenderer, opts Options, logger logging.Logger, reporter *Reporter) *Pipeline {
	defaults := DefaultOptions()
	if opts.WorkDir == "" {
		opts.WorkDir = defaults.WorkDir
	}
	if opts.SourceExt == "" {
		opts.SourceExt = defaults.SourceExt
	}
	if opts.OutputExt == "" {
		opts.OutputExt = defaults.OutputExt
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if reporter == nil {
		reporter = NewReporter(nil, nil, logger)
	}

	return &Pipeline{
		fs:       fsys,
		parser:   &component.Parser{Indent: opts.Indent},
		scoper:   scoping.NewScoper(opts.ScopePrefix),
		markup:   markup,
		styles:   styles,
		opts:     opts,
		logger:   logger.WithComponent("pipeline"),
		reporter: reporter,
	}
}

// OutputPath maps a source path to its artifact path in the same directory.
func (p *Pipeline) OutputPath(src string) string {
	return strings.TrimSuffix(src, p.opts.SourceExt) + p.opts.OutputExt
}

// RelPath renders path relative to the working directory as "./rel".
func (p *Pipeline) RelPath(path string) string {
	rel, err := filepath.Rel(p.opts.WorkDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return "./" + filepath.ToSlash(rel)
}

// Process runs job and reports its outcome. The returned error is the fault
// that was reported; callers decide whether it ends the process.
func (p *Pipeline) Process(ctx context.Context, job Job) error {
	rel := p.RelPath(job.Path)
	p.reporter.Begin(rel, job.Removal)

	var (
		res *Result
		err error
	)
	if job.Removal {
		res, err = p.Remove(ctx, job.Path)
	} else {
		res, err = p.Compile(ctx, job.Path)
	}

	if err != nil {
		p.reporter.Failure(ctx, rel, job.Removal, res, err)
		return err
	}

	p.reporter.Success(ctx, rel, res)
	return nil
}

// Remove deletes the artifact of src. A missing artifact is not an error.
func (p *Pipeline) Remove(ctx context.Context, src string) (*Result, error) {
	start := time.Now()
	res := &Result{Source: src, Output: p.OutputPath(src), Removed: true, Stage: StageIdle}

	err := p.fs.Remove(res.Output)
	res.Duration = time.Since(start)
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
		res.FailedAt, res.Stage = res.Stage, StageFailed
		return res, cerrors.NewFileSystemFault(cerrors.CodeRemove, "cannot remove output file", err).
			WithLocation(res.Output, 0, 0)
	}

	res.Stage = StageDone
	p.logger.Debug(ctx, "artifact removed", "output", res.Output, "existed", err == nil)
	return res, nil
}

// Compile runs src through every stage and writes the artifact. Nothing is
// written unless every stage succeeds.
func (p *Pipeline) Compile(ctx context.Context, src string) (res *Result, err error) {
	perf := logging.StartOperation(p.logger, "compile")
	res = &Result{Source: src, Stage: StageIdle}

	defer func() {
		res.Duration = perf.Elapsed()
		if err == nil {
			return
		}
		var fault *cerrors.Fault
		if !errors.As(err, &fault) {
			fault = cerrors.NewInternalFault("compile failed", err)
			err = fault
		}
		if fault.FilePath == "" {
			fault.FilePath = src
		}
		fault.WithContext("stage", res.Stage.String())
		res.FailedAt, res.Stage = res.Stage, StageFailed
	}()

	if src == "" {
		return res, cerrors.NewSourceRequiredFault()
	}
	if !strings.HasSuffix(src, p.opts.SourceExt) {
		return res, cerrors.NewWrongExtensionFault(p.opts.SourceExt)
	}
	res.Output = p.OutputPath(src)

	res.Stage = StageParsing
	doc, err := p.load(src)
	if err != nil {
		return res, err
	}
	doc.Normalize()
	res.Component = doc.Tag()

	res.Stage = StageScoping
	res.Scope = p.scoper.Scope(doc)

	res.Stage = StageRendering
	if err := p.render(ctx, doc); err != nil {
		return res, err
	}

	res.Stage = StageInjecting
	at, err := assembler.FindAnchor(doc.Script)
	if err != nil {
		return res, err
	}

	res.Stage = StageAssembling
	module := assembler.Module(assembler.Assemble(doc.HTML, doc.CSS, doc.Script, at))
	if err := p.write(res.Output, module); err != nil {
		return res, err
	}
	fields := []interface{}{"component", res.Component, "output", res.Output}
	if res.Scope != nil {
		fields = append(fields, "scope", res.Scope.Token)
	}
	perf.Debug(ctx, "artifact written", fields...)

	res.Stage = StageDone
	return res, nil
}

func (p *Pipeline) load(src string) (*component.Document, error) {
	data, err := afero.ReadFile(p.fs, src)
	if err != nil {
		return nil, cerrors.NewFileSystemFault(cerrors.CodeRead, "cannot read source file", err)
	}

	text, err := component.Decode(data)
	if err != nil {
		return nil, cerrors.NewFileSystemFault(cerrors.CodeRead, "source file is not valid text", err)
	}

	return p.parser.Parse(src, component.SplitLines(text))
}

func (p *Pipeline) render(ctx context.Context, doc *component.Document) error {
	base := filepath.Join(doc.Dir, doc.Name)

	html, err := p.markup.RenderMarkup(ctx, strings.Join(doc.Template, "\n"), base+".pug")
	if err != nil {
		var fault *cerrors.Fault
		if errors.As(err, &fault) || ctx.Err() != nil {
			return err
		}
		return cerrors.NewMarkupFault(err.Error(), 0)
	}
	doc.HTML = html

	sheet, err := p.styles.RenderStylesheet(ctx, strings.Join(doc.Style, "\n"), base+".less")
	if err != nil {
		return err
	}
	doc.CSS = sheet.CSS

	return nil
}

func (p *Pipeline) write(path, content string) error {
	if err := p.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cerrors.NewFileSystemFault(cerrors.CodeWrite, "cannot create output directory", err)
	}
	if err := afero.WriteFile(p.fs, path, []byte(content), 0o644); err != nil {
		return cerrors.NewFileSystemFault(cerrors.CodeWrite, fmt.Sprintf("cannot write %s", filepath.Base(path)), err)
	}
	return nil
}
