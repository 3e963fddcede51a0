package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCond(t *testing.T) {
	require.Equal(t, "hash", Cond(true, "hash", "name"))
	require.Equal(t, "name", Cond(false, "hash", "name"))
	require.Equal(t, 0, Cond(false, 1, 0))
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		same bool
	}{
		{
			name: "identical content",
			a:    []byte("body { color: red }"),
			b:    []byte("body { color: red }"),
			same: true,
		},
		{
			name: "single byte difference",
			a:    []byte("body { color: red }"),
			b:    []byte("body { color: rad }"),
			same: false,
		},
		{
			name: "empty and non-empty",
			a:    []byte{},
			b:    []byte{0},
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := Checksum(tt.a), Checksum(tt.b)
			require.NotEmpty(t, a)
			require.Equal(t, tt.same, a == b)
		})
	}
}

func TestCRC64_stable(t *testing.T) {
	data := []byte("console.log('hello')")
	require.Equal(t, CRC64(data), CRC64(data))
	require.NotEqual(t, CRC64(data), CRC64(append(data, ';')))
}
