// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package exec

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheAIBot/treadle/ir"
)

func longLit(v int64, width int, signed bool) compiled {
	return compiled{width: width, signed: signed, long: func() int64 { return v }}
}

func bigLit(v *big.Int, width int, signed bool) compiled {
	return compiled{width: width, signed: signed, big: func() *big.Int { return v }}
}

func evalLong(t *testing.T, op ir.PrimOp, args []compiled, consts ...int64) int64 {
	t.Helper()
	widths := make([]int, len(args))
	for i, a := range args {
		widths[i] = a.width
	}
	f, err := longPrim(op, args, widths, consts, &RunStats{})
	require.NoError(t, err)
	return f()
}

func TestLongArithmetic(t *testing.T) {
	a := longLit(50, 8, true)
	b := longLit(-80, 8, true)
	assert.Equal(t, int64(-30), evalLong(t, ir.Add, []compiled{a, b}))
	assert.Equal(t, int64(130), evalLong(t, ir.Sub, []compiled{a, b}))
	assert.Equal(t, int64(-4000), evalLong(t, ir.Mul, []compiled{a, b}))
	assert.Equal(t, int64(0), evalLong(t, ir.Div, []compiled{a, b}))
	assert.Equal(t, int64(-7), evalLong(t, ir.Div, []compiled{b, longLit(11, 8, true)}), "division truncates toward zero")
	assert.Equal(t, int64(-3), evalLong(t, ir.Rem, []compiled{b, longLit(11, 8, true)}))
	assert.Equal(t, int64(-50), evalLong(t, ir.Neg, []compiled{a}))
}

func TestLongDivideByZeroYieldsZero(t *testing.T) {
	stats := &RunStats{}
	f, err := longPrim(ir.Div, []compiled{longLit(9, 8, false), longLit(0, 8, false)}, []int{8, 8}, nil, stats)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f())
	f, err = longPrim(ir.Rem, []compiled{longLit(9, 8, false), longLit(0, 8, false)}, []int{8, 8}, nil, stats)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f())
	assert.Equal(t, 2, stats.DivideByZero)
}

func TestLongComparisons(t *testing.T) {
	a := longLit(-3, 8, true)
	b := longLit(5, 8, true)
	assert.Equal(t, int64(1), evalLong(t, ir.Lt, []compiled{a, b}))
	assert.Equal(t, int64(0), evalLong(t, ir.Gt, []compiled{a, b}))
	assert.Equal(t, int64(1), evalLong(t, ir.Leq, []compiled{a, a}))
	assert.Equal(t, int64(1), evalLong(t, ir.Geq, []compiled{b, b}))
	assert.Equal(t, int64(0), evalLong(t, ir.Eq, []compiled{a, b}))
	assert.Equal(t, int64(1), evalLong(t, ir.Neq, []compiled{a, b}))
}

func TestLongBitwise(t *testing.T) {
	a := longLit(0b1100, 4, false)
	b := longLit(0b1010, 4, false)
	assert.Equal(t, int64(0b1000), evalLong(t, ir.And, []compiled{a, b}))
	assert.Equal(t, int64(0b1110), evalLong(t, ir.Or, []compiled{a, b}))
	assert.Equal(t, int64(0b0110), evalLong(t, ir.Xor, []compiled{a, b}))
	assert.Equal(t, int64(0b0011), evalLong(t, ir.Not, []compiled{a}))

	// negative operands are their two's complement bits
	m1 := longLit(-1, 4, true)
	assert.Equal(t, int64(0b1010), evalLong(t, ir.And, []compiled{m1, b}))
}

func TestLongReductions(t *testing.T) {
	assert.Equal(t, int64(1), evalLong(t, ir.Andr, []compiled{longLit(-1, 4, true)}))
	assert.Equal(t, int64(0), evalLong(t, ir.Andr, []compiled{longLit(0b0111, 4, false)}))
	assert.Equal(t, int64(1), evalLong(t, ir.Orr, []compiled{longLit(0b0100, 4, false)}))
	assert.Equal(t, int64(0), evalLong(t, ir.Orr, []compiled{longLit(0, 4, false)}))
	assert.Equal(t, int64(1), evalLong(t, ir.Xorr, []compiled{longLit(0b0111, 4, false)}))
	assert.Equal(t, int64(0), evalLong(t, ir.Xorr, []compiled{longLit(0b0101, 4, false)}))
}

func TestLongShifts(t *testing.T) {
	a := longLit(0b0110, 4, false)
	assert.Equal(t, int64(0b011000), evalLong(t, ir.Shl, []compiled{a}, 2))
	assert.Equal(t, int64(0b01), evalLong(t, ir.Shr, []compiled{a}, 2))
	assert.Equal(t, int64(0), evalLong(t, ir.Shr, []compiled{longLit(5, 3, false)}, 5), "over-shift drains an unsigned value")
	assert.Equal(t, int64(-1), evalLong(t, ir.Shr, []compiled{longLit(-2, 3, true)}, 7), "over-shift keeps the sign")

	assert.Equal(t, int64(0b0110000), evalLong(t, ir.Dshl, []compiled{a, longLit(3, 2, false)}))
	assert.Equal(t, int64(0b0011), evalLong(t, ir.Dshr, []compiled{a, longLit(1, 2, false)}))
}

func TestLongBitExtraction(t *testing.T) {
	a := longLit(0b11011001, 8, false)
	assert.Equal(t, int64(0b011), evalLong(t, ir.Bits, []compiled{a}, 5, 3))
	assert.Equal(t, int64(0b110), evalLong(t, ir.Head, []compiled{a}, 3))
	assert.Equal(t, int64(0b011001), evalLong(t, ir.Tail, []compiled{a}, 2))
	assert.Equal(t, int64(0b1101100101), evalLong(t, ir.Cat, []compiled{a, longLit(0b01, 2, false)}))

	// a negative value contributes its two's complement bits
	s := longLit(-1, 4, true)
	assert.Equal(t, int64(0b1111), evalLong(t, ir.AsUInt, []compiled{s}))
	assert.Equal(t, int64(0b11110), evalLong(t, ir.Cat, []compiled{s, longLit(0, 1, false)}))
	assert.Equal(t, int64(-1), evalLong(t, ir.AsSInt, []compiled{longLit(0b1111, 4, false)}))
}

func TestBigArithmetic(t *testing.T) {
	wide := new(big.Int).Lsh(big.NewInt(1), 80)
	a := bigLit(wide, 81, false)
	b := bigLit(big.NewInt(5), 4, false)

	widths := []int{81, 4}
	stats := &RunStats{}

	f, err := bigPrim(ir.Add, []compiled{a, b}, widths, nil, stats)
	require.NoError(t, err)
	want := new(big.Int).Add(wide, big.NewInt(5))
	assert.Equal(t, 0, f().Cmp(want))

	f, err = bigPrim(ir.Div, []compiled{a, bigLit(new(big.Int), 4, false)}, widths, nil, stats)
	require.NoError(t, err)
	assert.Equal(t, 0, f().Sign())
	assert.Equal(t, 1, stats.DivideByZero)

	// narrowing a wide value back into the int64 domain
	f2, err := bigPrim(ir.Bits, []compiled{a}, []int{81}, []int64{80, 70}, stats)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<10), f2().Int64())
}

func TestBigBitwise(t *testing.T) {
	v := new(big.Int).Lsh(big.NewInt(0b1011), 70)
	a := bigLit(v, 74, false)
	stats := &RunStats{}

	f, err := bigPrim(ir.Head, []compiled{a}, []int{74}, []int64{4}, stats)
	require.NoError(t, err)
	assert.Equal(t, int64(0b1011), f().Int64())

	f, err = bigPrim(ir.Xorr, []compiled{a}, []int{74}, nil, stats)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f().Int64())

	f, err = bigPrim(ir.Cat, []compiled{a, bigLit(big.NewInt(0b11), 2, false)}, []int{74, 2}, nil, stats)
	require.NoError(t, err)
	want := new(big.Int).Lsh(v, 2)
	want.Or(want, big.NewInt(0b11))
	assert.Equal(t, 0, f().Cmp(want))
}

func TestCompiledConversions(t *testing.T) {
	l := longLit(-7, 8, true)
	assert.Equal(t, int64(-7), l.asLong()())
	assert.Equal(t, int64(-7), l.asBig()().Int64())

	b := bigLit(big.NewInt(1234), 16, false)
	assert.Equal(t, int64(1234), b.asLong()())
}
