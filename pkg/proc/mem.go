package proc

import (
	lru "github.com/hashicorp/golang-lru"
)

const (
	cacheEnabled  = true
	cachePageSize = 0x1000
	// cachePages is the number of pages a session keeps, enough for walks
	// bounded by hundreds of nodes.
	cachePages = 256
)

// MemoryReader is like io.ReaderAt, but the offset is a uint64 so that it
// can address all of 64-bit memory.
type MemoryReader interface {
	// ReadMemory is just like io.ReaderAt.ReadAt.
	ReadMemory(buf []byte, addr uint64) (n int, err error)
}

// pageCache reads target memory a page at a time and keeps the most
// recently used pages. Pages that can not be read whole are remembered
// too, reads that touch them go straight to the target.
type pageCache struct {
	mem   MemoryReader
	pages *lru.Cache
}

// unreadablePage marks a page that could not be read whole.
type unreadablePage struct{}

func (m *pageCache) page(base uint64) ([]byte, bool) {
	if p, ok := m.pages.Get(base); ok {
		if p, ok := p.([]byte); ok {
			return p, true
		}
		return nil, false
	}
	p := make([]byte, cachePageSize)
	n, err := m.mem.ReadMemory(p, base)
	if err != nil || n != len(p) {
		m.pages.Add(base, unreadablePage{})
		return nil, false
	}
	m.pages.Add(base, p)
	return p, true
}

func (m *pageCache) ReadMemory(data []byte, addr uint64) (n int, err error) {
	for n < len(data) {
		cur := addr + uint64(n)
		base := cur &^ (cachePageSize - 1)
		p, ok := m.page(base)
		if !ok {
			// partially mapped page, read around the cache
			return m.mem.ReadMemory(data, addr)
		}
		n += copy(data[n:], p[cur-base:])
	}
	return n, nil
}

func cacheMemory(mem MemoryReader) MemoryReader {
	if !cacheEnabled {
		return mem
	}
	if _, isCache := mem.(*pageCache); isCache {
		return mem
	}
	pages, err := lru.New(cachePages)
	if err != nil {
		return mem
	}
	return &pageCache{mem: mem, pages: pages}
}
