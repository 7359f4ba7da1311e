// Package app wires configuration loading, model assembly and reporting
// together, independently of the command-line entrypoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/born-ml/unet/internal/backend/cpu"
	"github.com/born-ml/unet/internal/config"
	"github.com/born-ml/unet/internal/ctxlog"
	"github.com/born-ml/unet/internal/nn"
	"github.com/born-ml/unet/internal/tensor"
	"github.com/born-ml/unet/internal/unet"
)

// App builds a U-Net from a Config and reports on it.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// New creates an App writing reports to outW and logs to logW.
func New(outW, logW io.Writer, cfg *Config) *App {
	return &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, logW),
		config: cfg,
	}
}

// Run loads the model description, builds the model, prints its summary
// and, when requested, runs one forward pass on a random batch.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	input, cfg, err := a.resolve(ctx)
	if err != nil {
		return err
	}

	backend := cpu.New()
	model, err := unet.Build(input, cfg, backend)
	if err != nil {
		return fmt.Errorf("failed to build model: %w", err)
	}
	a.logger.Info("Model built.",
		"input", input.String(),
		"encoders", model.NumEncoders(),
		"decoders", model.NumDecoders(),
		"parameters", model.NumParameters())

	fmt.Fprint(a.outW, model.Summary())

	if a.config.Forward {
		if err := a.forward(ctx, model, backend); err != nil {
			return err
		}
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// resolve merges the model file, if any, with the command-line overrides.
func (a *App) resolve(ctx context.Context) (unet.InputSpec, unet.Config, error) {
	input := DefaultInput
	cfg := unet.DefaultConfig()

	if a.config.ConfigPath != "" {
		f, err := config.Load(ctx, a.config.ConfigPath)
		if err != nil {
			return unet.InputSpec{}, unet.Config{}, fmt.Errorf("failed to load model description: %w", err)
		}
		if f.Input != nil {
			input = f.InputSpec()
		}
		cfg = f.Merge(cfg)
	}
	a.config.Overrides.apply(&input, &cfg)

	a.logger.Debug("Configuration resolved.", "input", input.String(), "block_sizes", cfg.BlockSizes,
		"kernel_size", cfg.KernelSize, "padding", cfg.Padding)
	return input, cfg, nil
}

func (a *App) forward(ctx context.Context, model *unet.Model[*cpu.CPUBackend], backend *cpu.CPUBackend) error {
	logger := ctxlog.FromContext(ctx)
	model.Eval()

	cfg := model.Config()
	batch := tensor.Rand[float32](model.Input().Shape(a.config.Batch), nn.NewSource(cfg.Seed+1), backend)
	if cfg.NormalizeInput {
		batch = batch.MulScalar(255)
	}

	start := time.Now()
	out := model.Forward(batch)
	elapsed := time.Since(start)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range out.Data() {
		lo = math.Min(lo, float64(v))
		hi = math.Max(hi, float64(v))
	}
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return errors.New("forward pass produced NaN")
	}

	logger.Info("Forward pass finished.", "batch", a.config.Batch, "elapsed", elapsed)
	fmt.Fprintf(a.outW, "forward: input %v -> output %v (min %.4g, max %.4g)\n",
		batch.Shape(), out.Shape(), lo, hi)
	return nil
}
