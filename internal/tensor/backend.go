package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - cpu.CPUBackend: pure Go kernels with BLAS-backed convolutions
//   - autodiff.AutodiffBackend: decorator that records operations for backprop
//
// All tensors are NCHW for the convolutional operations.
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MulScalar multiplies every element by scalar.
	MulScalar(x *RawTensor, scalar float64) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor

	// Sum reduces all elements to a scalar tensor.
	Sum(x *RawTensor) *RawTensor

	// Convolution: input [N, C_in, H, W], kernel [C_out, C_in, K_h, K_w].
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor

	// Transposed convolution: input [N, C_in, H, W], kernel [C_in, C_out, K_h, K_w].
	ConvTranspose2D(input, kernel *RawTensor, stride int) *RawTensor
	ConvTranspose2DInputBackward(input, kernel, grad *RawTensor, stride int) *RawTensor
	ConvTranspose2DKernelBackward(input, kernel, grad *RawTensor, stride int) *RawTensor

	// Pooling
	MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, maxIndices []int, kernelSize, stride int) *RawTensor

	// Activations
	ReLU(x *RawTensor) *RawTensor
	ELU(x *RawTensor, alpha float64) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
