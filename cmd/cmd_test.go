package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/coco/internal/config"
	cerrors "github.com/conneroisu/coco/internal/errors"
	"github.com/conneroisu/coco/internal/logging"
)

const cardSource = "<script>\n" +
	"\texport default {\n" +
	"\t\tname: 'card',\n" +
	"\t}\n" +
	"</script>\n" +
	"<template lang=\"pug\">\n" +
	"\tdiv hi\n" +
	"</template>\n" +
	"<style lang=\"less\">\n" +
	"\tdiv{color:red}\n" +
	"</style>\n"

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	viper.Reset()
	watchMode = false
	cfgFile = ""
	configFormat = "yaml"
	versionFormat = "text"
	if f := rootCmd.Flags().Lookup("help"); f != nil {
		require.NoError(t, f.Value.Set("false"))
	}

	var out, errOut syncBuffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(normalizeArgs(args))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestUsage(t *testing.T) {
	expected := "coco <filename>.vue ... process single file immediately\n" +
		"coco <path> --watch ... install watcher for \"<path>/**/*.vue\"\n"

	for _, args := range [][]string{{}, {"-h"}, {"--help"}, {"-help"}, {"h"}, {"help"}} {
		stdout, _, err := execute(t, args...)
		require.NoError(t, err, "args %v", args)
		assert.Equal(t, expected, stdout, "args %v", args)
	}
}

func TestCompileSingleFile(t *testing.T) {
	dir := t.TempDir()
	chdirTest(t, dir)
	writeFile(t, filepath.Join(dir, "Card.vue"), cardSource)

	stdout, stderr, err := execute(t, "Card.vue")
	require.NoError(t, err, stderr)

	wd, _ := os.Getwd()
	assert.Contains(t, stdout, `composing component "`+filepath.Join(wd, "Card.vue")+`"`)
	assert.Contains(t, stdout, "./Card.vue - add/updt")

	data, err := os.ReadFile(filepath.Join(dir, "Card.mjs"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "st.innerHTML = `div{color:red}`;")
	assert.Contains(t, string(data), "export default {\n\ttemplate:`<div>hi</div>`,\n\tname: 'card',")
}

func TestCompileFaultIsReported(t *testing.T) {
	dir := t.TempDir()
	chdirTest(t, dir)
	writeFile(t, filepath.Join(dir, "Broken.vue"), "<script>\n\tconst a = 1\n</script>\n")

	_, stderr, err := execute(t, "Broken.vue")
	require.Error(t, err)
	assert.True(t, isReported(err))
	assert.True(t, cerrors.IsKind(err, cerrors.KindScriptAnchor))
	assert.Contains(t, stderr, "-----\n./Broken.vue - "+cerrors.CodeScriptAnchor+" - ")

	_, err = os.Stat(filepath.Join(dir, "Broken.mjs"))
	assert.True(t, os.IsNotExist(err))
}

func TestCompileWrongExtension(t *testing.T) {
	chdirTest(t, t.TempDir())

	_, _, err := execute(t, "notes.txt")
	require.Error(t, err)
	assert.True(t, cerrors.IsKind(err, cerrors.KindWrongExtension))
}

func TestConfigFileIsUsed(t *testing.T) {
	dir := t.TempDir()
	chdirTest(t, dir)
	writeFile(t, filepath.Join(dir, ".coco.yml"), "build:\n  output_ext: .js\n")
	writeFile(t, filepath.Join(dir, "Card.vue"), cardSource)

	_, stderr, err := execute(t, "Card.vue")
	require.NoError(t, err, stderr)
	assert.FileExists(t, filepath.Join(dir, "Card.js"))
}

func TestConfigShow(t *testing.T) {
	chdirTest(t, t.TempDir())

	stdout, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "source_ext: .vue")
	assert.Contains(t, stdout, "output_ext: .mjs")
	assert.Contains(t, stdout, "minify: true")

	stdout, _, err = execute(t, "config", "show", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"SourceExt": ".vue"`)

	_, _, err = execute(t, "config", "show", "--format", "toml")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "coco ")
	assert.Contains(t, stdout, "Go: ")
}

func TestWatchTree(t *testing.T) {
	dir := t.TempDir()
	chdirTest(t, dir)
	writeFile(t, filepath.Join(dir, "src", "A.vue"), cardSource)
	writeFile(t, filepath.Join(dir, "src", "node_modules", "Lib.vue"), cardSource)

	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)

	var out, errOut syncBuffer
	c := &cobra.Command{}
	c.SetOut(&out)
	c.SetErr(&errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- watchTree(ctx, c, cfg, logging.NewNopLogger(), filepath.Join(dir, "src"), ready)
	}()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watch ended early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}

	exists := func(p string) func() bool {
		return func() bool {
			_, err := os.Stat(p)
			return err == nil
		}
	}

	require.Eventually(t, exists(filepath.Join(dir, "src", "A.mjs")), 5*time.Second, 20*time.Millisecond)

	writeFile(t, filepath.Join(dir, "src", "B.vue"), cardSource)
	require.Eventually(t, exists(filepath.Join(dir, "src", "B.mjs")), 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "src", "A.vue")))
	require.Eventually(t, func() bool { return !exists(filepath.Join(dir, "src", "A.mjs"))() }, 5*time.Second, 20*time.Millisecond)

	writeFile(t, filepath.Join(dir, "src", "Bad.vue"), "<script>\n\tnothing here\n</script>\n")
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(errOut.String()), []byte(cerrors.CodeScriptAnchor))
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.NoFileExists(t, filepath.Join(dir, "src", "node_modules", "Lib.mjs"))
	assert.Contains(t, out.String(), "coco ready")
	assert.Contains(t, out.String(), "./src/B.vue - add/updt")
}

// chdirTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it
// changes the working directory and restores it when the test finishes.
func chdirTest(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
