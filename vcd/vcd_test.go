package vcd

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDCode(t *testing.T) {
	assert.Equal(t, "!", idCode(0))
	assert.Equal(t, "\"", idCode(1))
	assert.Equal(t, "~", idCode(93))
	assert.Equal(t, "!!", idCode(94))
	assert.NotEqual(t, idCode(94), idCode(0))
}

func TestRenderValue(t *testing.T) {
	assert.Equal(t, "0101", renderValue(big.NewInt(5), 4))
	assert.Equal(t, "1", renderValue(big.NewInt(1), 1))
	assert.Equal(t, "11111111", renderValue(big.NewInt(-1), 8), "negatives render as two's complement")
	assert.Equal(t, "10000000", renderValue(big.NewInt(-128), 8))
}

func TestRecorderOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.vcd")
	r, err := NewRecorder(path)
	require.NoError(t, err)

	r.AddWire("io_a", 8)
	r.AddWire("clock", 1)
	r.AddWire("sub.wire", 4)
	require.NoError(t, r.Start())

	r.SetTime(1)
	r.LogChange("io_a", 8, big.NewInt(0x2a))
	r.LogChange("clock", 1, big.NewInt(1))
	r.LogChange("io_a", 8, big.NewInt(0x2a)) // unchanged, suppressed
	r.SetTime(2)
	r.LogChange("clock", 1, big.NewInt(0))
	r.LogChange("unknown", 1, big.NewInt(1)) // undeclared, ignored

	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)

	assert.Contains(t, s, "$timescale 1ns $end")
	assert.Contains(t, s, "$enddefinitions $end")
	assert.Contains(t, s, "io_a")
	assert.Contains(t, s, "sub__wire", "hierarchy dots flatten to underscores")
	assert.Contains(t, s, "#1\n")
	assert.Contains(t, s, "#2\n")
	assert.Contains(t, s, "b00101010 ")
	assert.Equal(t, 1, countOccurrences(s, "b00101010 "), "unchanged values are not re-dumped")
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
