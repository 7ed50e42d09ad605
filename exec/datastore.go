// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package exec

import (
	"math/big"

	"github.com/pkg/errors"
)

// A WriteHook observes every slot write. The engine installs one when a
// value-change recorder is active.
type WriteHook func(s *Symbol, offset int, value *big.Int)

// A DataStore is the flat arena of typed slots all assigners read and
// write. Three parallel arenas hold narrow (int32), wide (int64) and
// arbitrary precision values; each arena is replicated across numBuffers
// buffers forming a ring of historical snapshots.
//
// Buffer 0 is always the current one; AdvanceBuffers rotates the ring so
// the previous current buffer becomes buffer 1.
type DataStore struct {
	numBuffers int
	current    int

	intRows  [][]int32
	longRows [][]int64
	bigRows  [][]*big.Int

	hook WriteHook
}

// NewDataStore builds a store with the given number of rollback buffers
// (total buffers = rollbackBuffers+1) and per-arena slot counts.
func NewDataStore(rollbackBuffers, intSlots, longSlots, bigSlots int) *DataStore {
	if rollbackBuffers < 0 {
		rollbackBuffers = 0
	}
	d := &DataStore{numBuffers: rollbackBuffers + 1}
	d.intRows = make([][]int32, d.numBuffers)
	d.longRows = make([][]int64, d.numBuffers)
	d.bigRows = make([][]*big.Int, d.numBuffers)
	for i := 0; i < d.numBuffers; i++ {
		d.intRows[i] = make([]int32, intSlots)
		d.longRows[i] = make([]int64, longSlots)
		bigs := make([]*big.Int, bigSlots)
		for j := range bigs {
			bigs[j] = new(big.Int)
		}
		d.bigRows[i] = bigs
	}
	return d
}

// NumBuffers returns the depth of the buffer ring.
func (d *DataStore) NumBuffers() int { return d.numBuffers }

// CurrentBufferIndex returns the physical index of the current buffer.
func (d *DataStore) CurrentBufferIndex() int { return d.current }

// PreviousBufferIndex returns the physical index of buffer 1.
func (d *DataStore) PreviousBufferIndex() int {
	return (d.current - 1 + d.numBuffers) % d.numBuffers
}

// SetHook installs (or with nil removes) the write observer.
func (d *DataStore) SetHook(h WriteHook) { d.hook = h }

// row maps a logical buffer offset (0 = current) to a physical row.
func (d *DataStore) row(offset int) int {
	return (d.current - offset%d.numBuffers + d.numBuffers) % d.numBuffers
}

// AdvanceBuffers rotates the ring: the current buffer becomes buffer 1 and
// a copy of it is exposed as the new current buffer. With a single buffer
// this is a no-op.
func (d *DataStore) AdvanceBuffers() {
	if d.numBuffers < 2 {
		return
	}
	next := (d.current + 1) % d.numBuffers
	copy(d.intRows[next], d.intRows[d.current])
	copy(d.longRows[next], d.longRows[d.current])
	for i, v := range d.bigRows[d.current] {
		d.bigRows[next][i].Set(v)
	}
	d.current = next
}

// GetLong reads the current value of a symbol held in the int or long
// arena.
func (d *DataStore) GetLong(s *Symbol) int64 {
	switch s.Size {
	case IntSize:
		return int64(d.intRows[d.current][s.Index])
	default:
		return d.longRows[d.current][s.Index]
	}
}

// SetLong writes a symbol in the int or long arena, masking to the
// symbol's declared width.
func (d *DataStore) SetLong(s *Symbol, v int64) {
	v = s.NormalizeLong(v)
	switch s.Size {
	case IntSize:
		d.intRows[d.current][s.Index] = int32(v)
	default:
		d.longRows[d.current][s.Index] = v
	}
	if d.hook != nil {
		d.hook(s, 0, big.NewInt(v))
	}
}

// GetBig reads the current value of a symbol in the big arena. The
// returned value must not be modified.
func (d *DataStore) GetBig(s *Symbol) *big.Int {
	return d.bigRows[d.current][s.Index]
}

// SetBig writes a symbol in the big arena, masking to the declared width.
func (d *DataStore) SetBig(s *Symbol, v *big.Int) {
	n := s.Normalize(v)
	d.bigRows[d.current][s.Index].Set(n)
	if d.hook != nil {
		d.hook(s, 0, n)
	}
}

// GetValue reads any symbol as a big value, regardless of its arena.
func (d *DataStore) GetValue(s *Symbol) *big.Int {
	if s.Size == BigSize {
		return new(big.Int).Set(d.GetBig(s))
	}
	return big.NewInt(d.GetLong(s))
}

// SetValue writes any symbol from a big value, regardless of its arena.
func (d *DataStore) SetValue(s *Symbol, v *big.Int) {
	if s.Size == BigSize {
		d.SetBig(s, v)
		return
	}
	d.SetLong(s, s.Normalize(v).Int64())
}

// GetIndexed reads element offset of a multi-slot symbol (a memory).
func (d *DataStore) GetIndexed(s *Symbol, offset int) (*big.Int, error) {
	if offset < 0 || offset >= s.Slots {
		return nil, errors.Errorf("offset %d out of range for %s with %d slots", offset, s.Name, s.Slots)
	}
	if s.Size == BigSize {
		return new(big.Int).Set(d.ReadBigAt(s.Index + offset)), nil
	}
	return big.NewInt(d.ReadLongAt(s.Size, s.Index+offset)), nil
}

// SetIndexed writes element offset of a multi-slot symbol, masking to the
// element width.
func (d *DataStore) SetIndexed(s *Symbol, offset int, v *big.Int) error {
	if offset < 0 || offset >= s.Slots {
		return errors.Errorf("offset %d out of range for %s with %d slots", offset, s.Name, s.Slots)
	}
	n := s.Normalize(v)
	if s.Size == BigSize {
		d.bigRows[d.current][s.Index+offset].Set(n)
	} else {
		d.WriteLongAt(s.Size, s.Index+offset, n.Int64())
	}
	if d.hook != nil {
		d.hook(s, offset, n)
	}
	return nil
}

// ReadLongAt is raw slot access into the current buffer of the int or long
// arena. Used by memory port assigners and black boxes that address
// arrays.
func (d *DataStore) ReadLongAt(size DataSize, index int) int64 {
	if size == IntSize {
		return int64(d.intRows[d.current][index])
	}
	return d.longRows[d.current][index]
}

// WriteLongAt is the raw counterpart of ReadLongAt. The caller is
// responsible for masking.
func (d *DataStore) WriteLongAt(size DataSize, index int, v int64) {
	if size == IntSize {
		d.intRows[d.current][index] = int32(v)
		return
	}
	d.longRows[d.current][index] = v
}

// ReadBigAt is raw slot access into the current buffer of the big arena.
func (d *DataStore) ReadBigAt(index int) *big.Int {
	return d.bigRows[d.current][index]
}

// WriteBigAt is the raw counterpart of ReadBigAt.
func (d *DataStore) WriteBigAt(index int, v *big.Int) {
	d.bigRows[d.current][index].Set(v)
}

// EarlierValue reads a symbol from buffer k of the ring; k=0 is the
// current buffer.
func (d *DataStore) EarlierValue(s *Symbol, k int) (*big.Int, error) {
	if k < 0 || k >= d.numBuffers {
		return nil, errors.Errorf("buffer %d out of range, store has %d buffers", k, d.numBuffers)
	}
	r := d.row(k)
	switch s.Size {
	case IntSize:
		return big.NewInt(int64(d.intRows[r][s.Index])), nil
	case LongSize:
		return big.NewInt(d.longRows[r][s.Index]), nil
	default:
		return new(big.Int).Set(d.bigRows[r][s.Index]), nil
	}
}
