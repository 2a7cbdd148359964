package cmd

import (
	"io"

	"github.com/spf13/afero"

	"github.com/conneroisu/coco/internal/build"
	"github.com/conneroisu/coco/internal/config"
	"github.com/conneroisu/coco/internal/logging"
	"github.com/conneroisu/coco/internal/renderer"
)

// newLogger builds the console logger and, when log.file is set, fans out to
// an appending file logger as well. The returned func closes the file.
func newLogger(cfg *config.Config, stderr io.Writer) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	console := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: stderr,
	})
	if cfg.Log.File == "" {
		return console, func() {}, nil
	}

	// The log file records at least info.
	fileLevel := level
	if fileLevel > logging.LevelInfo {
		fileLevel = logging.LevelInfo
	}
	file, err := logging.NewFileLogger(&logging.LoggerConfig{Level: fileLevel, Format: cfg.Log.Format}, cfg.Log.File)
	if err != nil {
		return nil, nil, err
	}

	return logging.NewMultiLogger(console, file), func() { _ = file.Close() }, nil
}

// newPipeline wires the renderers, reporter and filesystem into a pipeline.
func newPipeline(cfg *config.Config, logger logging.Logger, stdout, stderr io.Writer, workDir string) *build.Pipeline {
	fs := afero.NewOsFs()

	opts := build.Options{
		WorkDir:     workDir,
		SourceExt:   cfg.Build.SourceExt,
		OutputExt:   cfg.Build.OutputExt,
		ScopePrefix: cfg.Build.ScopePrefix,
		Indent:      cfg.Build.Indent,
	}

	return build.NewPipeline(
		fs,
		renderer.NewMarkupRenderer(fs),
		renderer.NewStyleRenderer(cfg.Style.Minify),
		opts,
		logger,
		build.NewReporter(stdout, stderr, logger),
	)
}
