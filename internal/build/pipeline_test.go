package build

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/conneroisu/coco/internal/errors"
	"github.com/conneroisu/coco/internal/renderer"
)

const cardSource = "<script>\n" +
	"\timport Base from './Base.mjs'\n" +
	"\n" +
	"\texport default {\n" +
	"\t\tname: 'my-card',\n" +
	"\t}\n" +
	"</script>\n" +
	"<template lang=\"pug\">\n" +
	"\tdiv hi\n" +
	"</template>\n" +
	"<style lang=\"less\">\n" +
	"\tdiv{color:red}\n" +
	"</style>\n"

type stubMarkup struct {
	html  string
	err   error
	calls []string
}

func (s *stubMarkup) RenderMarkup(_ context.Context, body, filename string) (string, error) {
	s.calls = append(s.calls, filename)
	if s.err != nil {
		return "", s.err
	}
	if s.html != "" {
		return s.html, nil
	}
	return body, nil
}

type stubStyles struct {
	err error
}

func (s *stubStyles) RenderStylesheet(_ context.Context, body, _ string) (*renderer.Stylesheet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &renderer.Stylesheet{CSS: body}, nil
}

func newTestPipeline(fs afero.Fs, markup MarkupRenderer, styles StyleRenderer) (*Pipeline, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	opts := DefaultOptions()
	opts.WorkDir = "/work"
	p := NewPipeline(fs, markup, styles, opts, nil, NewReporter(&out, &errOut, nil))
	return p, &out, &errOut
}

func TestCompileEndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/comp/MyCard.vue", []byte(cardSource), 0o644))

	p, _, _ := newTestPipeline(fs, renderer.NewMarkupRenderer(fs), renderer.NewStyleRenderer(true))

	res, err := p.Compile(context.Background(), "/work/comp/MyCard.vue")
	require.NoError(t, err)
	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, "/work/comp/MyCard.mjs", res.Output)
	assert.Equal(t, "my-card", res.Component)
	assert.Nil(t, res.Scope)

	data, err := afero.ReadFile(fs, "/work/comp/MyCard.mjs")
	require.NoError(t, err)

	expected := strings.Join([]string{
		`const st = document.createElement("style");`,
		"st.innerHTML = `div{color:red}`;",
		`document.getElementsByTagName("head")[0].appendChild(st);`,
		"import Base from './Base.mjs'",
		"",
		"export default {",
		"\ttemplate:`<div>hi</div>`,",
		"\tname: 'my-card',",
		"}",
	}, "\n")
	assert.Equal(t, expected, string(data))
}

func TestCompileScopedStyle(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := "<script>\n\texport default {\n\t}\n</script>\n" +
		"<template lang=\"pug\">\n\t.card Hello\n</template>\n" +
		"<style lang=\"less\" scoped>\n\t.card {\n\t\tcolor: red;\n\t}\n</style>\n"
	require.NoError(t, afero.WriteFile(fs, "/work/Card.vue", []byte(src), 0o644))

	p, _, _ := newTestPipeline(fs, renderer.NewMarkupRenderer(fs), renderer.NewStyleRenderer(true))

	res, err := p.Compile(context.Background(), "/work/Card.vue")
	require.NoError(t, err)
	require.NotNil(t, res.Scope)

	data, err := afero.ReadFile(fs, "/work/Card.mjs")
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, ".card["+res.Scope.Token+"]")
	assert.Contains(t, out, `<div class="card" `+res.Scope.Token+`="">Hello</div>`)
}

func TestCompileRendererFilenames(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/comp/MyCard.vue", []byte(cardSource), 0o644))

	markup := &stubMarkup{}
	p, _, _ := newTestPipeline(fs, markup, &stubStyles{})

	_, err := p.Compile(context.Background(), "/work/comp/MyCard.vue")
	require.NoError(t, err)
	assert.Equal(t, []string{"/work/comp/MyCard.pug"}, markup.calls)
}

func TestCompileValidation(t *testing.T) {
	p, _, _ := newTestPipeline(afero.NewMemMapFs(), &stubMarkup{}, &stubStyles{})

	res, err := p.Compile(context.Background(), "")
	assert.True(t, cerrors.IsKind(err, cerrors.KindSourceRequired))
	assert.Equal(t, StageFailed, res.Stage)

	_, err = p.Compile(context.Background(), "/work/a.txt")
	assert.True(t, cerrors.IsKind(err, cerrors.KindWrongExtension))
	assert.Contains(t, err.Error(), ".vue")

	_, err = p.Compile(context.Background(), "/work/missing.vue")
	var fault *cerrors.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, cerrors.KindFileSystem, fault.Kind)
	assert.Equal(t, cerrors.CodeRead, fault.Code)
	assert.Equal(t, "parsing", fault.Context["stage"])
}

func TestCompileWithoutAnchorWritesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := "<script>\n\tconst a = 1\n</script>\n<template lang=\"pug\">\n\tdiv\n</template>\n"
	require.NoError(t, afero.WriteFile(fs, "/work/NoAnchor.vue", []byte(src), 0o644))

	p, _, _ := newTestPipeline(fs, &stubMarkup{}, &stubStyles{})

	res, err := p.Compile(context.Background(), "/work/NoAnchor.vue")
	assert.True(t, cerrors.IsKind(err, cerrors.KindScriptAnchor))
	assert.Equal(t, StageInjecting, res.FailedAt)

	exists, err := afero.Exists(fs, "/work/NoAnchor.mjs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCompileSyntaxErrorsWriteNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := "stray\n<script>\n\texport default {\n\t}\n</script>\n<template lang=\"pug\">\ndiv\n</template>\n"
	require.NoError(t, afero.WriteFile(fs, "/work/Bad.vue", []byte(src), 0o644))

	p, _, _ := newTestPipeline(fs, &stubMarkup{}, &stubStyles{})

	res, err := p.Compile(context.Background(), "/work/Bad.vue")
	require.Error(t, err)
	assert.True(t, cerrors.IsKind(err, cerrors.KindSyntax))
	assert.Equal(t, StageParsing, res.FailedAt)
	assert.Contains(t, err.Error(), "1 - ")
	assert.Contains(t, err.Error(), "7 - ")

	exists, _ := afero.Exists(fs, "/work/Bad.mjs")
	assert.False(t, exists)
}

func TestCompileRendererFaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/MyCard.vue", []byte(cardSource), 0o644))

	p, _, _ := newTestPipeline(fs, &stubMarkup{err: errors.New("boom")}, &stubStyles{})
	res, err := p.Compile(context.Background(), "/work/MyCard.vue")
	assert.True(t, cerrors.IsKind(err, cerrors.KindMarkup))
	assert.Equal(t, StageRendering, res.FailedAt)

	styleFault := cerrors.NewStylesheetFault("Syntax", "Unexpected", 1, 2, []string{"", "div{", ""})
	p, _, _ = newTestPipeline(fs, &stubMarkup{}, &stubStyles{err: styleFault})
	_, err = p.Compile(context.Background(), "/work/MyCard.vue")
	assert.True(t, cerrors.IsKind(err, cerrors.KindStylesheet))

	exists, _ := afero.Exists(fs, "/work/MyCard.mjs")
	assert.False(t, exists)
}

func TestCompileWriteFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/work/MyCard.vue", []byte(cardSource), 0o644))

	p, _, _ := newTestPipeline(afero.NewReadOnlyFs(base), &stubMarkup{}, &stubStyles{})
	res, err := p.Compile(context.Background(), "/work/MyCard.vue")

	var fault *cerrors.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, cerrors.CodeWrite, fault.Code)
	assert.Equal(t, StageAssembling, res.FailedAt)
}

func TestRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/Gone.mjs", []byte("x"), 0o644))

	p, _, _ := newTestPipeline(fs, &stubMarkup{}, &stubStyles{})

	res, err := p.Remove(context.Background(), "/work/Gone.vue")
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.Equal(t, StageDone, res.Stage)

	exists, _ := afero.Exists(fs, "/work/Gone.mjs")
	assert.False(t, exists)

	_, err = p.Remove(context.Background(), "/work/Gone.vue")
	assert.NoError(t, err, "missing artifact is tolerated")
}

func TestRemoveFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/work/Kept.mjs", []byte("x"), 0o644))

	p, _, _ := newTestPipeline(afero.NewReadOnlyFs(base), &stubMarkup{}, &stubStyles{})
	_, err := p.Remove(context.Background(), "/work/Kept.vue")

	var fault *cerrors.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, cerrors.CodeRemove, fault.Code)
}

func TestProcessReportsFaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/comp/NoAnchor.vue", []byte("<script>\n\tconst a = 1\n</script>\n"), 0o644))

	p, out, errOut := newTestPipeline(fs, &stubMarkup{}, &stubStyles{})

	err := p.Process(context.Background(), Job{Path: "/work/comp/NoAnchor.vue"})
	require.Error(t, err)

	lines := strings.Split(strings.TrimSpace(errOut.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "-----", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "./comp/NoAnchor.vue - "+cerrors.CodeScriptAnchor+" - "), lines[1])

	progress := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, progress, 2)
	assert.Equal(t, "./comp/NoAnchor.vue - add/updt", progress[0])
	assert.Regexp(t, `^\./comp/NoAnchor\.vue - add/updt \.\.\. \d+ms$`, progress[1])
}

func TestProcessRemoval(t *testing.T) {
	p, out, errOut := newTestPipeline(afero.NewMemMapFs(), &stubMarkup{}, &stubStyles{})

	require.NoError(t, p.Process(context.Background(), Job{Path: "/work/A.vue", Removal: true}))
	assert.Equal(t, "./A.vue - remove  \n", out.String())
	assert.Empty(t, errOut.String())
}

func TestRelPath(t *testing.T) {
	p, _, _ := newTestPipeline(afero.NewMemMapFs(), &stubMarkup{}, &stubStyles{})

	assert.Equal(t, "./comp/A.vue", p.RelPath("/work/comp/A.vue"))
	assert.Equal(t, "/elsewhere/A.vue", p.RelPath("/elsewhere/A.vue"))
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "idle", StageIdle.String())
	assert.Equal(t, "assembling", StageAssembling.String())
	assert.Equal(t, "failed", StageFailed.String())
	assert.Equal(t, "unknown", Stage(42).String())
}
