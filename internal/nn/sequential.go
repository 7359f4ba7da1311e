package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/unet/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
//
// Example:
//
//	block := nn.NewSequential[Backend](
//	    nn.NewConv2D(3, 16, 3, nn.PaddingSame, src, backend),
//	    nn.NewELU[Backend](1.0),
//	)
//	output := block.Forward(input)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// OutputShape implements ShapeInferer by chaining every module's inference.
func (s *Sequential[B]) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	shape := input
	for i, module := range s.modules {
		next, err := InferShape(module, shape)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%v): %w", i, module, err)
		}
		shape = next
	}
	return shape, nil
}

// SetTraining implements ModeSetter for every child module.
func (s *Sequential[B]) SetTraining(training bool) {
	for _, module := range s.modules {
		SetTraining(module, training)
	}
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}

// String lists the contained modules.
func (s *Sequential[B]) String() string {
	parts := make([]string, len(s.modules))
	for i, m := range s.modules {
		parts[i] = fmt.Sprint(m)
	}
	return "Sequential(" + strings.Join(parts, ", ") + ")"
}
