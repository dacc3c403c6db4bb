package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		code     []byte
		opcode   Opcode
		operands []int
		length   int
	}{
		{"short load is normalized", []byte{byte(OpAload2)}, OpAload, []int{2}, 1},
		{"istore_0", []byte{byte(OpIstore0)}, OpIstore, []int{0}, 1},
		{"bipush sign", []byte{byte(OpBipush), 0xFF}, OpBipush, []int{-1}, 2},
		{"iinc", []byte{byte(OpIinc), 3, 0xFE}, OpIinc, []int{3, -2}, 3},
		{"wide iinc", []byte{byte(OpWide), byte(OpIinc), 1, 0, 0, 10}, OpIinc, []int{256, 10}, 6},
		{"ldc_w", []byte{byte(OpLdcW), 1, 2}, OpLdc, []int{258}, 3},
		{"goto backwards", []byte{byte(OpGoto), 0xFF, 0xFF}, OpGoto, []int{-1}, 3},
		{"goto_w", []byte{byte(OpGotoW), 0, 0, 0, 8}, OpGoto, []int{8}, 5},
		{"invokeinterface", []byte{byte(OpInvokeinterface), 0, 7, 2, 0}, OpInvokeinterface, []int{7, 2}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := Decode(tt.code)
			require.NoError(t, err)
			require.Equal(t, 1, seq.Len())
			in := seq.Instrs[0]
			assert.Equal(t, tt.opcode, in.Opcode)
			assert.Equal(t, tt.operands, in.Operands)
			assert.Equal(t, tt.length, in.Length)
		})
	}
}

func TestDecodeSwitch(t *testing.T) {
	// offset 0: iload_0, offset 1: tableswitch padded to offset 4
	code := []byte{
		byte(OpIload0),
		byte(OpTableswitch), 0, 0,
		0, 0, 0, 23, // default
		0, 0, 0, 1, // low
		0, 0, 0, 2, // high
		0, 0, 0, 24,
		0, 0, 0, 25,
		byte(OpReturn), byte(OpReturn), byte(OpReturn),
	}
	seq, err := Decode(code)
	require.NoError(t, err)
	require.Equal(t, 5, seq.Len())

	sw := seq.Instrs[1]
	assert.True(t, sw.IsSwitch())
	assert.True(t, sw.EndsBlock())
	assert.Equal(t, []int{24, 1, 25, 2, 26}, sw.Operands)
	assert.Equal(t, []int{24, 25, 26}, sw.Targets())

	i, ok := seq.IndexOf(25)
	require.True(t, ok)
	assert.Equal(t, 3, i)
	assert.Equal(t, 27, seq.EndOffset())
}

func TestDecodeErrors(t *testing.T) {
	t.Run("truncated operand", func(t *testing.T) {
		_, err := Decode([]byte{byte(OpSipush), 1})
		assert.ErrorIs(t, err, errTruncated)
	})
	t.Run("unknown opcode", func(t *testing.T) {
		_, err := Decode([]byte{0xFE})
		assert.Error(t, err)
	})
	t.Run("bad wide", func(t *testing.T) {
		_, err := Decode([]byte{byte(OpWide), byte(OpNop)})
		assert.Error(t, err)
	})
}
