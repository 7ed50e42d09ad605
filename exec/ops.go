// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package exec

import (
	"math/big"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/TheAIBot/treadle/ir"
)

// Compiled expressions are closures over data store slots, one evaluation
// domain per arena family: int64 covers the int and long classes, big.Int
// the rest. The result class of each node decides its domain.
type (
	longFunc func() int64
	bigFunc  func() *big.Int
)

// RunStats accumulates the recoverable incidents of a run.
type RunStats struct {
	// DivideByZero counts divisions and remainders with a zero divisor;
	// each yields zero and evaluation continues.
	DivideByZero int
}

// A compiled carries one evaluated expression node: its inferred type and
// exactly one of the two domain closures.
type compiled struct {
	width  int
	signed bool
	long   longFunc
	big    bigFunc
}

func (c compiled) isBig() bool { return c.big != nil }

// asLong lowers the node into the int64 domain, keeping the low 64 bits
// when narrowing from big.
func (c compiled) asLong() longFunc {
	if c.long != nil {
		return c.long
	}
	f := c.big
	return func() int64 {
		v := f()
		if v.IsInt64() {
			return v.Int64()
		}
		return int64(maskBig(v, 64).Uint64())
	}
}

// asBig lifts the node into the big domain.
func (c compiled) asBig() bigFunc {
	if c.big != nil {
		return c.big
	}
	f := c.long
	return func() *big.Int { return big.NewInt(f()) }
}

func boolLong(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// longPrim builds the int64 evaluator for one primitive node. The widths
// slice holds the operand widths; the caller's domain rule only picks this
// evaluator when the inferred result width is at or under LongThreshold.
func longPrim(op ir.PrimOp, args []compiled, widths []int, consts []int64, stats *RunStats) (longFunc, error) {
	var a, b longFunc
	a = args[0].asLong()
	if len(args) > 1 {
		b = args[1].asLong()
	}
	w0 := widths[0]
	c := func(i int) int {
		if i < len(consts) {
			return int(consts[i])
		}
		return 0
	}
	switch op {
	case ir.Add:
		return func() int64 { return a() + b() }, nil
	case ir.Sub:
		return func() int64 { return a() - b() }, nil
	case ir.Mul:
		return func() int64 { return a() * b() }, nil
	case ir.Div:
		return func() int64 {
			d := b()
			if d == 0 {
				stats.DivideByZero++
				return 0
			}
			return a() / d
		}, nil
	case ir.Rem:
		return func() int64 {
			d := b()
			if d == 0 {
				stats.DivideByZero++
				return 0
			}
			return a() % d
		}, nil
	case ir.Lt:
		return func() int64 { return boolLong(a() < b()) }, nil
	case ir.Leq:
		return func() int64 { return boolLong(a() <= b()) }, nil
	case ir.Gt:
		return func() int64 { return boolLong(a() > b()) }, nil
	case ir.Geq:
		return func() int64 { return boolLong(a() >= b()) }, nil
	case ir.Eq:
		return func() int64 { return boolLong(a() == b()) }, nil
	case ir.Neq:
		return func() int64 { return boolLong(a() != b()) }, nil
	case ir.Pad, ir.Cvt:
		return a, nil
	case ir.AsUInt:
		return func() int64 { return maskLong(a(), w0) }, nil
	case ir.AsSInt:
		return func() int64 { return signExtendLong(a(), w0) }, nil
	case ir.AsClock:
		return func() int64 { return a() & 1 }, nil
	case ir.Shl:
		n := uint(c(0))
		return func() int64 { return a() << n }, nil
	case ir.Shr:
		n := uint(c(0))
		if c(0) >= w0 {
			// shifting out every bit leaves the sign for SInt, zero for UInt
			if !args[0].signed {
				return func() int64 { return 0 }, nil
			}
			n = uint(w0 - 1)
		}
		return func() int64 { return a() >> n }, nil
	case ir.Dshl:
		return func() int64 {
			sh := b()
			if sh >= 64 {
				return 0
			}
			return a() << uint(sh)
		}, nil
	case ir.Dshr:
		return func() int64 {
			sh := b()
			if sh >= 64 {
				sh = 63
			}
			return a() >> uint(sh)
		}, nil
	case ir.Neg:
		return func() int64 { return -a() }, nil
	case ir.Not:
		return func() int64 { return maskLong(^a(), w0) }, nil
	case ir.And, ir.Or, ir.Xor:
		w := maxInt(w0, widths[1])
		switch op {
		case ir.And:
			return func() int64 { return maskLong(a(), w) & maskLong(b(), w) }, nil
		case ir.Or:
			return func() int64 { return maskLong(a(), w) | maskLong(b(), w) }, nil
		default:
			return func() int64 { return maskLong(a(), w) ^ maskLong(b(), w) }, nil
		}
	case ir.Andr:
		all := maskLong(-1, w0)
		return func() int64 { return boolLong(maskLong(a(), w0) == all) }, nil
	case ir.Orr:
		return func() int64 { return boolLong(maskLong(a(), w0) != 0) }, nil
	case ir.Xorr:
		return func() int64 { return int64(bits.OnesCount64(uint64(maskLong(a(), w0))) & 1) }, nil
	case ir.Cat:
		w1 := widths[1]
		return func() int64 { return maskLong(a(), w0)<<uint(w1) | maskLong(b(), w1) }, nil
	case ir.Bits:
		hi, lo := c(0), c(1)
		return func() int64 { return maskLong(maskLong(a(), w0)>>uint(lo), hi-lo+1) }, nil
	case ir.Head:
		n := c(0)
		return func() int64 { return maskLong(a(), w0) >> uint(w0-n) }, nil
	case ir.Tail:
		n := c(0)
		return func() int64 { return maskLong(a(), w0-n) }, nil
	default:
		return nil, errors.Errorf("unknown primitive op %s", op)
	}
}

// bigPrim is longPrim for the arbitrary precision domain.
func bigPrim(op ir.PrimOp, args []compiled, widths []int, consts []int64, stats *RunStats) (bigFunc, error) {
	var a, b bigFunc
	a = args[0].asBig()
	if len(args) > 1 {
		b = args[1].asBig()
	}
	w0 := widths[0]
	c := func(i int) int {
		if i < len(consts) {
			return int(consts[i])
		}
		return 0
	}
	cmp := func(want func(int) bool) bigFunc {
		return func() *big.Int { return big.NewInt(boolLong(want(a().Cmp(b())))) }
	}
	switch op {
	case ir.Add:
		return func() *big.Int { return new(big.Int).Add(a(), b()) }, nil
	case ir.Sub:
		return func() *big.Int { return new(big.Int).Sub(a(), b()) }, nil
	case ir.Mul:
		return func() *big.Int { return new(big.Int).Mul(a(), b()) }, nil
	case ir.Div:
		return func() *big.Int {
			d := b()
			if d.Sign() == 0 {
				stats.DivideByZero++
				return new(big.Int)
			}
			return new(big.Int).Quo(a(), d)
		}, nil
	case ir.Rem:
		return func() *big.Int {
			d := b()
			if d.Sign() == 0 {
				stats.DivideByZero++
				return new(big.Int)
			}
			return new(big.Int).Rem(a(), d)
		}, nil
	case ir.Lt:
		return cmp(func(r int) bool { return r < 0 }), nil
	case ir.Leq:
		return cmp(func(r int) bool { return r <= 0 }), nil
	case ir.Gt:
		return cmp(func(r int) bool { return r > 0 }), nil
	case ir.Geq:
		return cmp(func(r int) bool { return r >= 0 }), nil
	case ir.Eq:
		return cmp(func(r int) bool { return r == 0 }), nil
	case ir.Neq:
		return cmp(func(r int) bool { return r != 0 }), nil
	case ir.Pad, ir.Cvt:
		return a, nil
	case ir.AsUInt:
		return func() *big.Int { return maskBig(a(), w0) }, nil
	case ir.AsSInt:
		return func() *big.Int { return normalizeBig(a(), w0, true) }, nil
	case ir.AsClock:
		return func() *big.Int { return maskBig(a(), 1) }, nil
	case ir.Shl:
		n := uint(c(0))
		return func() *big.Int { return new(big.Int).Lsh(a(), n) }, nil
	case ir.Shr:
		n := uint(c(0))
		if c(0) >= w0 {
			if !args[0].signed {
				return func() *big.Int { return new(big.Int) }, nil
			}
			n = uint(w0 - 1)
		}
		return func() *big.Int { return new(big.Int).Rsh(a(), n) }, nil
	case ir.Dshl:
		bl := args[1].asLong()
		return func() *big.Int { return new(big.Int).Lsh(a(), uint(bl())) }, nil
	case ir.Dshr:
		bl := args[1].asLong()
		return func() *big.Int { return new(big.Int).Rsh(a(), uint(bl())) }, nil
	case ir.Neg:
		return func() *big.Int { return new(big.Int).Neg(a()) }, nil
	case ir.Not:
		return func() *big.Int {
			m := maskBig(a(), w0)
			full := new(big.Int).Lsh(bigOne, uint(w0))
			full.Sub(full, bigOne)
			return m.Xor(m, full)
		}, nil
	case ir.And, ir.Or, ir.Xor:
		w := maxInt(w0, widths[1])
		return func() *big.Int {
			x, y := maskBig(a(), w), maskBig(b(), w)
			switch op {
			case ir.And:
				return x.And(x, y)
			case ir.Or:
				return x.Or(x, y)
			default:
				return x.Xor(x, y)
			}
		}, nil
	case ir.Andr:
		full := new(big.Int).Lsh(bigOne, uint(w0))
		full.Sub(full, bigOne)
		return func() *big.Int { return big.NewInt(boolLong(maskBig(a(), w0).Cmp(full) == 0)) }, nil
	case ir.Orr:
		return func() *big.Int { return big.NewInt(boolLong(maskBig(a(), w0).Sign() != 0)) }, nil
	case ir.Xorr:
		return func() *big.Int {
			m := maskBig(a(), w0)
			n := 0
			for _, w := range m.Bits() {
				n += bits.OnesCount(uint(w))
			}
			return big.NewInt(int64(n & 1))
		}, nil
	case ir.Cat:
		w1 := widths[1]
		return func() *big.Int {
			r := maskBig(a(), w0)
			r.Lsh(r, uint(w1))
			return r.Or(r, maskBig(b(), w1))
		}, nil
	case ir.Bits:
		hi, lo := c(0), c(1)
		return func() *big.Int {
			r := maskBig(a(), w0)
			r.Rsh(r, uint(lo))
			return maskBig(r, hi-lo+1)
		}, nil
	case ir.Head:
		n := c(0)
		return func() *big.Int {
			r := maskBig(a(), w0)
			return r.Rsh(r, uint(w0-n))
		}, nil
	case ir.Tail:
		n := c(0)
		return func() *big.Int { return maskBig(a(), w0-n) }, nil
	default:
		return nil, errors.Errorf("unknown primitive op %s", op)
	}
}
