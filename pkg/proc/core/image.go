// Package core implements memory snapshot images: a YAML document
// describing mapped regions of a target address space, its symbols and,
// optionally, the layout of its types.
//
//	pointer-size: 8
//	layouts: [types.yml]
//	regions:
//	  - addr: 0x1000
//	    words: [1, 0x1010, 2, 0]
//	  - addr: 0x2000
//	    data: "de ad be ef"
//	    size: 64
//	symbols:
//	  - {name: head, addr: 0x1000, type: Node}
//
// A region is described by hex bytes (data) or by pointer sized words
// (words), and is zero padded up to size.
package core

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/go-delve/memviz/pkg/logflags"
	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/pkg/proc/layout"
)

type imageFile struct {
	PointerSize int                `yaml:"pointer-size,omitempty"`
	ByteOrder   string             `yaml:"byte-order,omitempty"`
	Layouts     []string           `yaml:"layouts,omitempty"`
	Types       []layout.TypeEntry `yaml:"types,omitempty"`
	Regions     []regionEntry      `yaml:"regions"`
	Symbols     []symbolEntry      `yaml:"symbols,omitempty"`
}

type regionEntry struct {
	Addr  uint64   `yaml:"addr"`
	Size  uint64   `yaml:"size,omitempty"`
	Data  string   `yaml:"data,omitempty"`
	Words []uint64 `yaml:"words,omitempty"`
}

type symbolEntry struct {
	Name string `yaml:"name"`
	Addr uint64 `yaml:"addr"`
	Type string `yaml:"type,omitempty"`
}

// Image is a loaded memory snapshot.
type Image struct {
	Memory  *Memory
	Types   *proc.Types
	Symbols []proc.Symbol
}

// Open loads the image at path. Extra layout files are defined before the
// layouts the image refers to.
func Open(path string, layouts ...string) (*Image, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	extra := make([]*layout.File, 0, len(layouts))
	for _, lpath := range layouts {
		lf, err := layout.LoadFile(lpath)
		if err != nil {
			return nil, err
		}
		extra = append(extra, lf)
	}
	img, err := Parse(data, filepath.Dir(path), extra...)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return img, nil
}

// Parse decodes an image. Layout files referenced by the image are resolved
// relative to dir.
func Parse(data []byte, dir string, extra ...*layout.File) (*Image, error) {
	var f imageFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("could not decode image: %v", err)
	}

	head := &layout.File{PointerSize: f.PointerSize, ByteOrder: f.ByteOrder, Types: f.Types}
	ts, err := head.NewTypes()
	if err != nil {
		return nil, err
	}
	for _, lf := range extra {
		if err := lf.Define(ts); err != nil {
			return nil, err
		}
	}
	for _, lpath := range f.Layouts {
		if !filepath.IsAbs(lpath) {
			lpath = filepath.Join(dir, lpath)
		}
		lf, err := layout.LoadFile(lpath)
		if err != nil {
			return nil, err
		}
		if err := lf.Define(ts); err != nil {
			return nil, err
		}
	}
	if err := head.Define(ts); err != nil {
		return nil, err
	}

	img := &Image{Memory: NewMemory(ts.ByteOrder), Types: ts}
	for i, re := range f.Regions {
		buf, err := re.bytes(ts)
		if err != nil {
			return nil, fmt.Errorf("region %d at %#x: %v", i, re.Addr, err)
		}
		img.Memory.Map(re.Addr, buf)
	}
	for _, se := range f.Symbols {
		sym := proc.Symbol{Name: se.Name, Addr: se.Addr}
		if se.Type != "" {
			sym.Type, err = ts.Parse(se.Type)
			if err != nil {
				return nil, fmt.Errorf("symbol %s: %v", se.Name, err)
			}
		}
		img.Symbols = append(img.Symbols, sym)
	}
	logflags.OracleLogger().Debugf("loaded image: %d regions, %d symbols", len(f.Regions), len(img.Symbols))
	return img, nil
}

func (re *regionEntry) bytes(ts *proc.Types) ([]byte, error) {
	if re.Data != "" && len(re.Words) > 0 {
		return nil, fmt.Errorf("both data and words specified")
	}
	var buf []byte
	if re.Data != "" {
		var err error
		buf, err = hex.DecodeString(strings.Join(strings.Fields(re.Data), ""))
		if err != nil {
			return nil, err
		}
	}
	if len(re.Words) > 0 {
		buf = make([]byte, int64(len(re.Words))*ts.PtrSize)
		for i, w := range re.Words {
			b := buf[int64(i)*ts.PtrSize:]
			if ts.PtrSize == 4 {
				ts.ByteOrder.PutUint32(b, uint32(w))
			} else {
				ts.ByteOrder.PutUint64(b, w)
			}
		}
	}
	if uint64(len(buf)) < re.Size {
		buf = append(buf, make([]byte, re.Size-uint64(len(buf)))...)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("empty region")
	}
	return buf, nil
}

// Target returns an oracle over the image.
func (img *Image) Target() *proc.Target {
	return proc.NewTarget(img.Memory, img.Types, img.Symbols)
}
