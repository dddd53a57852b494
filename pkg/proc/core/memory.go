package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Memory is an in-memory image of a target address space built from byte
// regions. Regions mapped later override earlier ones.
type Memory struct {
	order   binary.ByteOrder
	regions []*region
	spliced splicedMemory
}

type region struct {
	addr uint64
	data []byte
}

// NewMemory returns an empty image. A nil order is little endian.
func NewMemory(order binary.ByteOrder) *Memory {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Memory{order: order}
}

// Map maps a copy of data at addr.
func (m *Memory) Map(addr uint64, data []byte) {
	r := &region{addr: addr, data: append([]byte(nil), data...)}
	m.regions = append(m.regions, r)
	m.spliced.Add(&offsetReaderAt{bytes.NewReader(r.data), addr}, addr, uint64(len(r.data)))
}

// MapZero maps size zero bytes at addr.
func (m *Memory) MapZero(addr, size uint64) {
	m.Map(addr, make([]byte, size))
}

// ReadMemory implements proc.MemoryReader.
func (m *Memory) ReadMemory(buf []byte, addr uint64) (int, error) {
	return m.spliced.ReadMemory(buf, addr)
}

// Put writes b at addr. The destination must be entirely contained in a
// single mapped region.
func (m *Memory) Put(addr uint64, b []byte) error {
	for i := len(m.regions) - 1; i >= 0; i-- {
		r := m.regions[i]
		if addr >= r.addr && addr+uint64(len(b)) <= r.addr+uint64(len(r.data)) {
			copy(r.data[addr-r.addr:], b)
			return nil
		}
	}
	return fmt.Errorf("no region contains [%#x, %#x)", addr, addr+uint64(len(b)))
}

// PutUint64 writes v at addr using the byte order of the image.
func (m *Memory) PutUint64(addr, v uint64) error {
	b := make([]byte, 8)
	m.order.PutUint64(b, v)
	return m.Put(addr, b)
}

// PutUint32 writes v at addr using the byte order of the image.
func (m *Memory) PutUint32(addr uint64, v uint32) error {
	b := make([]byte, 4)
	m.order.PutUint32(b, v)
	return m.Put(addr, b)
}

// PutWord writes v at addr as a word of size bytes (1, 2, 4 or 8).
func (m *Memory) PutWord(addr uint64, size int, v uint64) error {
	b := make([]byte, size)
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		m.order.PutUint16(b, uint16(v))
	case 4:
		m.order.PutUint32(b, uint32(v))
	case 8:
		m.order.PutUint64(b, v)
	default:
		return fmt.Errorf("unsupported word size %d", size)
	}
	return m.Put(addr, b)
}
