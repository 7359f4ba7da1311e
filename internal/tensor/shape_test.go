package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_Basics(t *testing.T) {
	s := Shape{2, 3, 4, 5}

	assert.Equal(t, 120, s.NumElements())
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, []int{60, 20, 5, 1}, s.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())

	n, c, h, w := s.NCHW()
	assert.Equal(t, [4]int{2, 3, 4, 5}, [4]int{n, c, h, w})
	assert.Panics(t, func() { Shape{3, 4}.NCHW() })

	clone := s.Clone()
	clone[0] = 9
	assert.Equal(t, 2, s[0])
	assert.True(t, s.Equal(Shape{2, 3, 4, 5}))
	assert.False(t, s.Equal(clone))

	require.NoError(t, s.Validate())
	assert.Error(t, Shape{2, 0}.Validate())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"column", Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"bias", Shape{2, 8, 4, 4}, Shape{1, 8, 1, 1}, Shape{2, 8, 4, 4}, true, false},
		{"rank", Shape{1}, Shape{2, 3}, Shape{2, 3}, true, false},
		{"scalar", Shape{}, Shape{4}, Shape{4}, true, false},
		{"mismatch", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestRawTensor(t *testing.T) {
	r, err := NewRaw(Shape{2, 3}, Float64, CPU)
	require.NoError(t, err)

	assert.Equal(t, 48, r.ByteSize())
	assert.Equal(t, Float64, r.DType())
	assert.Equal(t, "CPU", r.Device().String())
	assert.Equal(t, []int{3, 1}, r.Strides())

	data := r.AsFloat64()
	data[4] = 2.5

	view, err := r.WithShape(Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, 2.5, view.AsFloat64()[4], "views share storage")

	clone := r.Clone()
	clone.AsFloat64()[4] = 7
	assert.Equal(t, 2.5, data[4])

	_, err = r.WithShape(Shape{4, 2})
	assert.Error(t, err)
	_, err = NewRaw(Shape{-1}, Float32, CPU)
	assert.Error(t, err)

	assert.Panics(t, func() { r.AsFloat32() })
	assert.Panics(t, func() { MustRaw(Shape{0}, Float32, CPU) })
}

func TestDataType(t *testing.T) {
	assert.Equal(t, Float32, DataTypeOf[float32]())
	assert.Equal(t, Float64, DataTypeOf[float64]())
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, "float64", Float64.String())
	assert.Equal(t, "unknown", DataType(9).String())
	assert.Panics(t, func() { DataType(9).Size() })
}
