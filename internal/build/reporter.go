package build

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	cerrors "github.com/conneroisu/coco/internal/errors"
	"github.com/conneroisu/coco/internal/logging"
)

const faultSeparator = "-----"

// Reporter prints the operator-facing console lines for each job and mirrors
// them into the structured logger.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	logger logging.Logger
}

// NewReporter creates a reporter writing progress to out and fault blocks to
// errOut. Nil writers discard.
func NewReporter(out, errOut io.Writer, logger logging.Logger) *Reporter {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Reporter{
		out:    out,
		errOut: errOut,
		logger: logger.WithComponent("reporter"),
	}
}

func action(removal bool) string {
	if removal {
		return "- remove  "
	}
	return "- add/updt"
}

// Begin announces a job.
func (r *Reporter) Begin(rel string, removal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, rel, action(removal))
}

// Success records a finished job.
func (r *Reporter) Success(ctx context.Context, rel string, res *Result) {
	fields := []interface{}{
		"path", rel,
		"removal", res.Removed,
		"duration_ms", res.Duration.Milliseconds(),
	}
	if res.Component != "" {
		fields = append(fields, "component", res.Component)
	}
	if res.Scope != nil {
		fields = append(fields, "scope", res.Scope.Token)
	}
	r.logger.Info(ctx, "job finished", fields...)
}

// Failure prints the fault block for err followed by the timing line.
func (r *Reporter) Failure(ctx context.Context, rel string, removal bool, res *Result, err error) {
	code, title, detail := cerrors.Describe(err)

	var elapsed int64
	stage := StageFailed
	if res != nil {
		elapsed = res.Duration.Milliseconds()
		stage = res.FailedAt
	}

	r.mu.Lock()
	fmt.Fprintln(r.errOut, faultSeparator)
	fmt.Fprintln(r.errOut, rel, "-", code, "-", title)
	for _, line := range detail {
		fmt.Fprintln(r.errOut, "\t"+line)
	}
	fmt.Fprintln(r.out, rel, action(removal), fmt.Sprintf("... %dms", elapsed))
	r.mu.Unlock()

	r.logger.Error(ctx, err, "job failed",
		"path", rel,
		"code", code,
		"kind", string(cerrors.KindOf(err)),
		"title", title,
		"detail", strings.Join(detail, "\n"),
		"stage", stage.String(),
		"duration_ms", elapsed,
	)
}
