// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates CLI flags into the application's configuration.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/born-ml/unet/internal/app"
	"github.com/born-ml/unet/internal/nn"
	"github.com/born-ml/unet/internal/unet"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("unet", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
unet - Assemble a U-Net segmentation model and report its structure.

Usage:
  unet [options] [CONFIG_PATH]

Arguments:
  CONFIG_PATH
    Path to a .yaml, .yml or .hcl model description. Flags override its values.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the model description file.")
	cFlag := flagSet.String("c", "", "Path to the model description file (shorthand).")
	kernelFlag := flagSet.Int("kernel", 0, "Convolution kernel size.")
	blocksFlag := flagSet.String("blocks", "", "Comma-separated filter counts per depth, e.g. '16,32,64'.")
	depthFlag := flagSet.Int("depth", 0, "Convolutions per encoder/decoder block.")
	dropoutFlag := flagSet.Float64("dropout", 0, "Dropout rate after each block convolution.")
	normalizeFlag := flagSet.Bool("normalize", false, "Divide input pixels by 255.")
	classesFlag := flagSet.Int("classes", 0, "Number of target classes.")
	targetActFlag := flagSet.String("target-activation", "", "Output activation: "+strings.Join(nn.ActivationNames(), ", ")+".")
	actFlag := flagSet.String("activation", "", "Block activation.")
	paddingFlag := flagSet.String("padding", "", "Convolution padding: 'same' or 'valid'.")
	inputFlag := flagSet.String("input", "", "Input size as HxWxC, e.g. '256x256x3'.")
	seedFlag := flagSet.Uint64("seed", 0, "Seed for weight initialization and dropout.")
	forwardFlag := flagSet.Bool("forward", false, "Run one forward pass on a random batch.")
	batchFlag := flagSet.Int("batch", 1, "Batch size for -forward.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	switch {
	case *configFlag != "":
		path = *configFlag
	case *cFlag != "":
		path = *cFlag
	case flagSet.NArg() > 0:
		path = flagSet.Arg(0)
	}

	if path == "" && flagSet.NFlag() == 0 {
		slog.Debug("No arguments provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, usageError("invalid log-format: must be 'text' or 'json'")
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	set := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var o app.Overrides
	if set["input"] {
		spec, err := ParseInput(*inputFlag)
		if err != nil {
			return nil, false, usageError("invalid input: %v", err)
		}
		o.Input = &spec
	}
	if set["blocks"] {
		sizes, err := ParseBlockSizes(*blocksFlag)
		if err != nil {
			return nil, false, usageError("invalid blocks: %v", err)
		}
		o.BlockSizes = sizes
	}
	if set["kernel"] {
		o.KernelSize = kernelFlag
	}
	if set["depth"] {
		o.BlockDepth = depthFlag
	}
	if set["dropout"] {
		o.Dropout = dropoutFlag
	}
	if set["normalize"] {
		o.NormalizeInput = normalizeFlag
	}
	if set["classes"] {
		o.TargetClasses = classesFlag
	}
	if set["target-activation"] {
		o.TargetActivation = targetActFlag
	}
	if set["activation"] {
		o.Activation = actFlag
	}
	if set["padding"] {
		padding := strings.ToLower(strings.TrimSpace(*paddingFlag))
		if _, err := nn.ParsePadding(padding); err != nil {
			return nil, false, usageError("invalid padding: %v", err)
		}
		o.Padding = &padding
	}
	if set["seed"] {
		o.Seed = seedFlag
	}

	config, err := app.NewConfig(app.Config{
		ConfigPath: path,
		Overrides:  o,
		Forward:    *forwardFlag,
		Batch:      *batchFlag,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config_path", path)
	return config, false, nil
}

// ParseBlockSizes parses a comma-separated list of positive filter counts.
func ParseBlockSizes(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	sizes := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", f)
		}
		if n <= 0 {
			return nil, fmt.Errorf("filter count must be positive, got %d", n)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

// ParseInput parses an input size written as HxWxC.
func ParseInput(s string) (unet.InputSpec, error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 3 {
		return unet.InputSpec{}, fmt.Errorf("%q is not HxWxC", s)
	}
	var dims [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return unet.InputSpec{}, fmt.Errorf("%q is not HxWxC with positive sizes", s)
		}
		dims[i] = n
	}
	return unet.InputSpec{Height: dims[0], Width: dims[1], Channels: dims[2]}, nil
}
