package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/coreir"
	"github.com/gogpu/coreir/ir"
	"github.com/gogpu/coreir/ir/binary"
	"github.com/gogpu/coreir/program"
)

// earlyReturn is a module with a function returning from inside an if and a
// compute entry point.
func earlyReturn(t *testing.T) *ir.Module {
	t.Helper()
	prog := &program.Program{Functions: []*program.Function{
		{
			Name:   "pick",
			Params: []*program.Param{{Name: "c", Type: program.BoolType}},
			Return: program.I32Type,
			Body: &program.Block{Stmts: []program.Stmt{
				&program.IfStmt{
					Cond: &program.Ident{Name: "c", T: program.BoolType},
					Then: &program.Block{Stmts: []program.Stmt{&program.ReturnStmt{Value: program.Int(1)}}},
				},
				&program.ReturnStmt{Value: program.Int(2)},
			}},
		},
		{
			Name:          "main",
			Stage:         program.StageCompute,
			WorkgroupSize: [3]uint32{1, 1, 1},
			Body:          &program.Block{},
		},
	}}
	m, err := coreir.Lower(prog)
	require.NoError(t, err)
	return m
}

func invalidModule() *ir.Module {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	fn := b.Function("f", m.Types.I32(), ir.StageNone)
	b.With(fn.Block(), func() { b.Return(fn) })
	return m
}

func writeModule(t *testing.T, dir, name string, m *ir.Module) string {
	t.Helper()
	data, err := binary.Encode(m)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// runApp runs the CLI with args and returns what it wrote.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	defer slog.SetDefault(slog.Default())
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = &buf
	err := app.Run(append([]string{"coreirc", "--verbosity", "0"}, args...))
	return buf.String(), err
}

func TestCacheKey(t *testing.T) {
	a := cacheKey([]byte("blob"), []byte("cfg"))
	assert.Equal(t, a, cacheKey([]byte("blob"), []byte("cfg")))
	assert.NotEqual(t, a, cacheKey([]byte("blob"), []byte("other")))
	assert.NotEqual(t, a, cacheKey([]byte("blo"), []byte("bcfg")))
	assert.NotEqual(t, a, cacheKey([]byte("blob"), []byte("cfg"), nil))
	assert.Len(t, a, 64)
}

func TestOutputCache(t *testing.T) {
	c, err := newOutputCache(4)
	require.NoError(t, err)

	var calls int32
	compute := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "out", nil
	}
	v, cached, err := c.get("k", compute)
	require.NoError(t, err)
	assert.Equal(t, "out", v)
	assert.False(t, cached)

	v, cached, err = c.get("k", compute)
	require.NoError(t, err)
	assert.Equal(t, "out", v)
	assert.True(t, cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	boom := errors.New("boom")
	_, _, err = c.get("bad", func() (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, c.Len(), "errors are not cached")

	_, err = newOutputCache(0)
	assert.Error(t, err)
}

func TestForEachFile(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a", "b", "c"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
		paths = append(paths, p)
	}
	got := make([]string, len(paths))
	err := forEachFile(context.Background(), paths, 2, func(_ context.Context, i int, _ string, data []byte) error {
		got[i] = string(data)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	assert.ErrorIs(t, forEachFile(context.Background(), nil, 1, nil), errNoInput)

	err = forEachFile(context.Background(), []string{filepath.Join(dir, "missing")}, 1, nil)
	assert.True(t, os.IsNotExist(errors.Unwrap(err)) || os.IsNotExist(err), "unexpected error: %v", err)
}

func TestSplitPasses(t *testing.T) {
	assert.Equal(t, []string{"merge_return", "robustness"}, splitPasses(" merge_return, ,robustness,"))
	assert.Nil(t, splitPasses(""))
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	assert.False(t, newLogger(0).Enabled(ctx, slog.LevelError))
	assert.True(t, newLogger(1).Enabled(ctx, slog.LevelError))
	assert.False(t, newLogger(2).Enabled(ctx, slog.LevelInfo))
	assert.True(t, newLogger(3).Enabled(ctx, slog.LevelInfo))
	assert.True(t, newLogger(5).Enabled(ctx, slog.LevelDebug))
}

func TestUseColor(t *testing.T) {
	var buf bytes.Buffer
	for mode, want := range map[string]bool{"always": true, "never": false, "auto": false} {
		got, err := useColor(mode, &buf)
		require.NoError(t, err)
		assert.Equal(t, want, got, mode)
	}
	_, err := useColor("sometimes", &buf)
	assert.Error(t, err)
}

func TestDisassemblyStyle(t *testing.T) {
	assert.Nil(t, disassemblyStyle(false).Comment)

	style := disassemblyStyle(true)
	assert.Contains(t, style.Comment("; x"), "\x1b[")
	assert.Contains(t, style.Label("%b1"), "%b1")
	assert.Equal(t, "name", errorStyle(false)("name"))
}

func TestCollectStats(t *testing.T) {
	m := earlyReturn(t)
	s := collectStats("x.cir", m)
	assert.Equal(t, "x.cir", s.Path)
	assert.Equal(t, 2, s.Functions)
	assert.Equal(t, 1, s.EntryPoints)
	assert.Equal(t, len(m.Instructions()), s.Instructions)
	assert.Greater(t, s.Blocks, 0)
	assert.Greater(t, s.Types, 0)
	assert.Greater(t, s.Constants, 0)
}

func TestDisCommand(t *testing.T) {
	dir := t.TempDir()
	m := earlyReturn(t)
	path := writeModule(t, dir, "early.cir", m)

	out, err := runApp(t, "--color", "never", "dis", path)
	require.NoError(t, err)
	assert.Equal(t, ir.Disassemble(m), out)

	out, err = runApp(t, "--color", "always", "dis", path, path)
	require.NoError(t, err)
	assert.Contains(t, out, "\x1b[")
	assert.Equal(t, 2, strings.Count(out, path))
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeModule(t, dir, "good.cir", earlyReturn(t))
	bad := writeModule(t, dir, "bad.cir", invalidModule())
	junk := filepath.Join(dir, "junk.cir")
	require.NoError(t, os.WriteFile(junk, []byte("not a module"), 0o644))

	out, err := runApp(t, "--color", "never", "validate", good)
	require.NoError(t, err)
	assert.Equal(t, good+": ok\n", out)

	out, err = runApp(t, "--color", "never", "validate", good, bad, junk)
	require.Error(t, err)
	assert.Equal(t, "2 of 3 modules failed validation", err.Error())
	assert.Contains(t, out, good+": ok\n")
	assert.Contains(t, out, bad+": ")
	assert.Contains(t, out, junk+": "+binary.ErrBadMagic.Error())
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	a := writeModule(t, dir, "a.cir", earlyReturn(t))
	b := writeModule(t, dir, "b.cir", invalidModule())

	out, err := runApp(t, "stats", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "INSTRUCTIONS")
	assert.Contains(t, out, a)
	assert.Contains(t, out, b)
	assert.Contains(t, out, "TOTAL")

	_, err = runApp(t, "stats")
	assert.ErrorIs(t, err, errNoInput)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	m := earlyReturn(t)
	a := writeModule(t, dir, "a.cir", m)
	b := writeModule(t, dir, "b.cir", m)

	out, err := runApp(t, "run", "--passes", "merge_return", a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "%continue_execution:ptr<function, bool, read_write> = var"))
	assert.Contains(t, out, "; "+a+"\n")
	assert.Contains(t, out, "; "+b+"\n")

	t.Run("config file", func(t *testing.T) {
		cfg := filepath.Join(dir, "pipeline.toml")
		require.NoError(t, os.WriteFile(cfg, []byte("Passes = [\"merge_return\"]\n"), 0o644))
		out, err := runApp(t, "run", "--config", cfg, a)
		require.NoError(t, err)
		assert.Contains(t, out, "continue_execution")

		out, err = runApp(t, "run", "--config", cfg, "--passes", "", a)
		require.NoError(t, err)
		assert.NotContains(t, out, "continue_execution")
	})

	t.Run("binary output", func(t *testing.T) {
		outDir := filepath.Join(dir, "build")
		_, err := runApp(t, "run", "--passes", "merge_return,value_to_let", "--generator", "cir", "--out", outDir, a)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(outDir, "a.cir"))
		require.NoError(t, err)
		got, err := binary.Decode(data)
		require.NoError(t, err)
		assert.NoError(t, ir.Check(got))
	})

	t.Run("errors", func(t *testing.T) {
		_, err := runApp(t, "run", "--passes", "no_such_pass", a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown transform "no_such_pass"`)

		_, err = runApp(t, "run", "--generator", "cir", a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--out is required")

		_, err = runApp(t, "run", "--generator", "spirv", "--out", dir, a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown generator")

		_, err = runApp(t, "run", "--entry-point", "nope", a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `entry point "nope" not found`)
	})
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "shader.ir"), outputPath("out", "src/shader.cir", "text"))
	assert.Equal(t, filepath.Join("out", "shader.cir"), outputPath("out", "shader.cir", "cir"))
}
