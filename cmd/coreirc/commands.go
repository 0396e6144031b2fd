package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/urfave/cli.v1"

	"github.com/gogpu/coreir"
	"github.com/gogpu/coreir/backend"
	"github.com/gogpu/coreir/ir"
	"github.com/gogpu/coreir/ir/binary"
	"github.com/gogpu/coreir/ir/transform"
)

const outputCacheSize = 256

// decode decodes a blob, naming path in errors.
func decode(path string, data []byte) (*ir.Module, error) {
	m, err := binary.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func disCommand(ctx *cli.Context) error {
	colored, err := useColor(ctx.GlobalString(colorFlag.Name), ctx.App.Writer)
	if err != nil {
		return err
	}
	paths := ctx.Args()
	texts := make([]string, len(paths))
	err = forEachFile(context.Background(), paths, ctx.GlobalInt(jobsFlag.Name), func(_ context.Context, i int, path string, data []byte) error {
		m, err := decode(path, data)
		if err != nil {
			return err
		}
		d := &ir.Disassembler{Style: disassemblyStyle(colored)}
		texts[i] = d.Disassemble(m)
		return nil
	})
	if err != nil {
		return err
	}
	w := ctx.App.Writer
	if colored {
		w = colorWriter(w)
	}
	comment := disassemblyStyle(colored).Comment
	for i, text := range texts {
		if len(paths) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, applyStyle(comment, "; "+paths[i]))
		}
		io.WriteString(w, text)
	}
	return nil
}

func applyStyle(f func(string) string, s string) string {
	if f == nil {
		return s
	}
	return f(s)
}

func validateCommand(ctx *cli.Context) error {
	colored, err := useColor(ctx.GlobalString(colorFlag.Name), ctx.App.Writer)
	if err != nil {
		return err
	}
	paths := ctx.Args()
	reports := make([]error, len(paths))
	err = forEachFile(context.Background(), paths, ctx.GlobalInt(jobsFlag.Name), func(_ context.Context, i int, _ string, data []byte) error {
		m, err := binary.Decode(data)
		if err != nil {
			reports[i] = err
			return nil
		}
		reports[i] = ir.Check(m)
		return nil
	})
	if err != nil {
		return err
	}
	w := ctx.App.Writer
	if colored {
		w = colorWriter(w)
	}
	return writeReports(w, paths, reports, errorStyle(colored))
}

// writeReports prints one line per valid module and every error of the
// invalid ones. It returns an error if any module failed.
func writeReports(w io.Writer, paths []string, reports []error, highlight func(string) string) error {
	failed := 0
	for i, report := range reports {
		if report == nil {
			fmt.Fprintf(w, "%s: ok\n", paths[i])
			continue
		}
		failed++
		var verrs ir.ValidationErrors
		if !errors.As(report, &verrs) {
			fmt.Fprintf(w, "%s: %v\n", highlight(paths[i]), report)
			continue
		}
		for _, verr := range verrs {
			fmt.Fprintf(w, "%s: %v\n", highlight(paths[i]), verr)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d modules failed validation", failed, len(reports))
	}
	return nil
}

func statsCommand(ctx *cli.Context) error {
	paths := ctx.Args()
	stats := make([]moduleStats, len(paths))
	err := forEachFile(context.Background(), paths, ctx.GlobalInt(jobsFlag.Name), func(_ context.Context, i int, path string, data []byte) error {
		m, err := decode(path, data)
		if err != nil {
			return err
		}
		stats[i] = collectStats(path, m)
		return nil
	})
	if err != nil {
		return err
	}
	renderStats(ctx.App.Writer, stats)
	return nil
}

// pipelineConfig builds the pipeline of the run command from --config and
// --passes.
func pipelineConfig(ctx *cli.Context) (transform.PipelineConfig, error) {
	cfg := transform.DefaultPipelineConfig()
	if file := ctx.String(configFlag.Name); file != "" {
		var err error
		if cfg, err = transform.LoadConfig(file); err != nil {
			return transform.PipelineConfig{}, err
		}
	}
	if ctx.IsSet(passesFlag.Name) {
		cfg.Passes = splitPasses(ctx.String(passesFlag.Name))
	}
	registry := transform.DefaultRegistry()
	for _, name := range cfg.Passes {
		if _, ok := registry.Lookup(name); !ok {
			return transform.PipelineConfig{}, fmt.Errorf("unknown transform %q (known: %s)", name, strings.Join(registry.Names(), ", "))
		}
	}
	return cfg, nil
}

func splitPasses(s string) []string {
	var passes []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			passes = append(passes, p)
		}
	}
	return passes
}

// runner processes blobs through a pipeline and a generator, caching
// outputs by their key.
type runner struct {
	cfg       transform.PipelineConfig
	generator string
	opts      backend.Options
	registry  *backend.Registry
	cache     *outputCache
	settings  []byte
}

func newRunner(cfg transform.PipelineConfig, generator string, opts backend.Options) (*runner, error) {
	registry := backend.Default()
	if _, ok := registry.Lookup(generator); !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", backend.ErrUnknownGenerator, generator, strings.Join(registry.Names(), ", "))
	}
	settings, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}
	cache, err := newOutputCache(outputCacheSize)
	if err != nil {
		return nil, err
	}
	return &runner{
		cfg:       cfg,
		generator: generator,
		opts:      opts,
		registry:  registry,
		cache:     cache,
		settings:  settings,
	}, nil
}

// process runs the pipeline over the blob read from path.
func (r *runner) process(path string, data []byte) (*backend.Output, error) {
	key := cacheKey(data, r.settings, []byte(r.generator), []byte(r.opts.EntryPoint))
	v, cached, err := r.cache.get(key, func() (interface{}, error) {
		m, err := decode(path, data)
		if err != nil {
			return nil, err
		}
		logger := slog.Default().With("file", path)
		if _, err := coreir.Run(m, r.cfg, logger); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out, err := coreir.Generate(m, coreir.Options{
			Generator: r.generator,
			Backend:   r.opts,
			Registry:  r.registry,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("Processed module", "file", path, "cached", cached)
	return v.(*backend.Output), nil
}

// outputPath returns the file in dir receiving the output for path.
func outputPath(dir, path, generator string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ext := ".ir"
	if generator == "cir" {
		ext = ".cir"
	}
	return filepath.Join(dir, base+ext)
}

func runCommand(ctx *cli.Context) error {
	cfg, err := pipelineConfig(ctx)
	if err != nil {
		return err
	}
	generator := ctx.String(generatorFlag.Name)
	dir := ctx.String(outFlag.Name)
	if dir == "" && generator != "text" {
		return fmt.Errorf("--%s is required for the %s generator", outFlag.Name, generator)
	}
	r, err := newRunner(cfg, generator, backend.Options{EntryPoint: ctx.String(entryPointFlag.Name)})
	if err != nil {
		return err
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	paths := ctx.Args()
	outputs := make([]*backend.Output, len(paths))
	err = forEachFile(context.Background(), paths, ctx.GlobalInt(jobsFlag.Name), func(_ context.Context, i int, path string, data []byte) error {
		out, err := r.process(path, data)
		if err != nil {
			return err
		}
		outputs[i] = out
		if dir == "" {
			return nil
		}
		dst := outputPath(dir, path, generator)
		if err := os.WriteFile(dst, out.Data, 0o644); err != nil {
			return err
		}
		slog.Info("Wrote output", "file", path, "output", dst, "bytes", len(out.Data))
		return nil
	})
	if err != nil {
		return err
	}
	if dir != "" {
		return nil
	}
	for i, out := range outputs {
		if len(paths) > 1 {
			if i > 0 {
				fmt.Fprintln(ctx.App.Writer)
			}
			fmt.Fprintf(ctx.App.Writer, "; %s\n", paths[i])
		}
		ctx.App.Writer.Write(out.Data)
	}
	return nil
}
