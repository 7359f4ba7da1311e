package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/unet/internal/tensor"
)

// identityShape is embedded by shape-preserving modules without parameters.
type identityShape struct{}

// OutputShape implements ShapeInferer; the shape passes through unchanged.
func (identityShape) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	return input.Clone(), nil
}

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
type ReLU[B tensor.Backend] struct{ identityShape }

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](input.Backend().ReLU(input.Raw()), input.Backend())
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

func (r *ReLU[B]) String() string { return "ReLU()" }

// ELU is an Exponential Linear Unit activation module.
//
// Applies f(x) = x for x > 0 and alpha*(exp(x)-1) otherwise. Negative
// outputs saturate at -alpha, keeping mean activations closer to zero than
// ReLU does.
type ELU[B tensor.Backend] struct {
	identityShape
	alpha float64
}

// NewELU creates a new ELU activation module.
func NewELU[B tensor.Backend](alpha float64) *ELU[B] {
	return &ELU[B]{alpha: alpha}
}

// Forward applies ELU activation.
func (e *ELU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](input.Backend().ELU(input.Raw(), e.alpha), input.Backend())
}

// Parameters returns nil (ELU has no trainable parameters).
func (e *ELU[B]) Parameters() []*Parameter[B] { return nil }

func (e *ELU[B]) String() string { return fmt.Sprintf("ELU(alpha=%g)", e.alpha) }

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function: σ(x) = 1 / (1 + exp(-x))
type Sigmoid[B tensor.Backend] struct{ identityShape }

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies Sigmoid activation.
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](input.Backend().Sigmoid(input.Raw()), input.Backend())
}

// Parameters returns nil (Sigmoid has no trainable parameters).
func (s *Sigmoid[B]) Parameters() []*Parameter[B] { return nil }

func (s *Sigmoid[B]) String() string { return "Sigmoid()" }

// Tanh is a hyperbolic tangent activation module.
type Tanh[B tensor.Backend] struct{ identityShape }

// NewTanh creates a new Tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return &Tanh[B]{}
}

// Forward applies Tanh activation.
func (t *Tanh[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](input.Backend().Tanh(input.Raw()), input.Backend())
}

// Parameters returns nil (Tanh has no trainable parameters).
func (t *Tanh[B]) Parameters() []*Parameter[B] { return nil }

func (t *Tanh[B]) String() string { return "Tanh()" }

// Softmax normalizes along one dimension so the values sum to 1.
//
// For NCHW segmentation maps use dim=1: every pixel gets a distribution over
// the classes.
type Softmax[B tensor.Backend] struct {
	identityShape
	dim int
}

// NewSoftmax creates a new Softmax module over dim.
func NewSoftmax[B tensor.Backend](dim int) *Softmax[B] {
	return &Softmax[B]{dim: dim}
}

// Forward applies softmax along the configured dimension.
func (s *Softmax[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](input.Backend().Softmax(input.Raw(), s.dim), input.Backend())
}

// Parameters returns nil (Softmax has no trainable parameters).
func (s *Softmax[B]) Parameters() []*Parameter[B] { return nil }

func (s *Softmax[B]) String() string { return fmt.Sprintf("Softmax(dim=%d)", s.dim) }

// Linear is the identity activation.
type Linear[B tensor.Backend] struct{ identityShape }

// NewLinear creates a new identity activation.
func NewLinear[B tensor.Backend]() *Linear[B] {
	return &Linear[B]{}
}

// Forward returns input unchanged.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input
}

// Parameters returns nil.
func (l *Linear[B]) Parameters() []*Parameter[B] { return nil }

func (l *Linear[B]) String() string { return "Linear()" }

// activations maps activation names to constructors. Softmax runs over the
// channel axis of NCHW tensors.
func activations[B tensor.Backend]() map[string]func() Module[B] {
	return map[string]func() Module[B]{
		"elu":     func() Module[B] { return NewELU[B](1.0) },
		"relu":    func() Module[B] { return NewReLU[B]() },
		"sigmoid": func() Module[B] { return NewSigmoid[B]() },
		"tanh":    func() Module[B] { return NewTanh[B]() },
		"softmax": func() Module[B] { return NewSoftmax[B](1) },
		"linear":  func() Module[B] { return NewLinear[B]() },
	}
}

// NewActivation looks up an activation module by name (case-insensitive).
// The empty name means "linear".
func NewActivation[B tensor.Backend](name string) (Module[B], error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "linear"
	}
	ctor, ok := activations[B]()[key]
	if !ok {
		return nil, fmt.Errorf("unknown activation %q (known: %s)", name, strings.Join(ActivationNames(), ", "))
	}
	return ctor(), nil
}

// ActivationNames lists the names accepted by NewActivation.
func ActivationNames() []string {
	names := make([]string, 0, 6)
	for name := range activations[tensor.Backend]() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
