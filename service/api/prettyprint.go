package api

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
)

const (
	// string used for one indentation level
	indentString = "\t"
)

// Formatter turns a render model into lines of output. Formatters do no
// I/O and keep no state between calls.
type Formatter interface {
	Format(n *Node) ([]string, error)
}

// TextFormatter renders one line per node, indented by nesting depth.
//
//	head: (*Node) 0x1000 = 0x2000
//		value: (int64) 0x2000 = 1
//		next: <nil>
type TextFormatter struct {
	// Indent is the string used for one indentation level, defaults to a tab.
	Indent string
	// Decorate, if set, is applied to the part of each line that follows
	// the label, it can be used to style markers.
	Decorate func(kind NodeKind, s string) string
}

// Format implements Formatter.
func (f TextFormatter) Format(n *Node) ([]string, error) {
	if n == nil {
		return nil, nil
	}
	indent := f.Indent
	if indent == "" {
		indent = indentString
	}
	var lines []string
	n.Visit(func(c *Node, depth int) bool {
		lines = append(lines, strings.Repeat(indent, depth)+f.line(c))
		return true
	})
	return lines, nil
}

// SinglelineString returns the text rendering of n without its children.
func (n *Node) SinglelineString() string {
	return TextFormatter{}.line(n)
}

// MultilineString returns the text rendering of n and its children.
func (n *Node) MultilineString(indent string) string {
	lines, _ := TextFormatter{Indent: indent}.Format(n)
	return strings.Join(lines, "\n")
}

func (f TextFormatter) line(n *Node) string {
	var buf bytes.Buffer
	if n.Label != "" {
		buf.WriteString(n.Label)
		buf.WriteString(": ")
	}
	body := nodeBody(n)
	if f.Decorate != nil {
		body = f.Decorate(n.Kind, body)
	}
	buf.WriteString(body)
	writeAnnotations(&buf, n)
	return strings.TrimRight(buf.String(), " ")
}

func nodeBody(n *Node) string {
	switch n.Kind {
	case NodeNull:
		return "<nil>"
	case NodeCycle:
		what := n.Value
		if what == "" {
			what = "cycle"
		}
		return fmt.Sprintf("<%s %s>", what, n.Addr)
	case NodeError:
		if n.Addr.Valid {
			return fmt.Sprintf("%s (unreadable %s)", n.Addr, n.Value)
		}
		return fmt.Sprintf("(unreadable %s)", n.Value)
	case NodeBound:
		switch n.Annotation(AnnotationBound) {
		case BoundDepth:
			return "<max depth reached>"
		case BoundElements:
			return fmt.Sprintf("...+%s more elements", n.Annotation(AnnotationOmitted))
		}
		return "..."
	}
	var buf bytes.Buffer
	if n.Type != "" {
		fmt.Fprintf(&buf, "(%s) ", n.Type)
	}
	if n.Addr.Valid {
		buf.WriteString(n.Addr.String())
	}
	if n.Value != "" {
		if buf.Len() > 0 {
			buf.WriteString(" = ")
		}
		buf.WriteString(n.Value)
	}
	return strings.TrimRight(buf.String(), " ")
}

func writeAnnotations(buf *bytes.Buffer, n *Node) {
	first := true
	for _, k := range n.AnnotationKeys() {
		if k == AnnotationBound || k == AnnotationOmitted {
			continue
		}
		if first {
			buf.WriteString(" [")
			first = false
		} else {
			buf.WriteString(" ")
		}
		fmt.Fprintf(buf, "%s=%s", k, n.Annotations[k])
	}
	if !first {
		buf.WriteString("]")
	}
}

// PrettyExamineMemory examine the memory and format data
//
// `format` specifies the data format (or data type), `size` specifies size of each data,
// like 4byte integer, 1byte character, etc.
func PrettyExamineMemory(address uint64, memArea []byte, isLittleEndian bool, format byte, size int) string {
	var (
		cols      int
		colFormat string
		colBytes  = size

		addrLen int
		addrFmt string
	)

	switch format {
	case 'b':
		cols = 4 // Avoid emitting rows that are too long when using binary format
		colFormat = fmt.Sprintf("%%0%db", colBytes*8)
	case 'o':
		cols = 8
		colFormat = fmt.Sprintf("0%%0%do", colBytes*3) // Always keep one leading zero for octal.
	case 'd':
		cols = 8
		colFormat = fmt.Sprintf("%%0%dd", colBytes*3)
	case 'x':
		cols = 8
		colFormat = fmt.Sprintf("0x%%0%dx", colBytes*2) // Always keep one leading '0x' for hex.
	default:
		return fmt.Sprintf("not supported format %q\n", string(format))
	}
	colFormat += "\t"

	l := len(memArea)
	rows := l / (cols * colBytes)
	if l%(cols*colBytes) != 0 {
		rows++
	}

	// Use the length of the last address for all rows so that columns line up.
	if l != 0 {
		addrLen = len(fmt.Sprintf("%x", address+uint64(l)))
	}
	addrFmt = "0x%0" + strconv.Itoa(addrLen) + "x:\t"

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 3, ' ', 0)

	for i := 0; i < rows; i++ {
		fmt.Fprintf(w, addrFmt, address)

		for j := 0; j < cols; j++ {
			offset := i*(cols*colBytes) + j*colBytes
			if offset+colBytes <= len(memArea) {
				n := byteArrayToUInt64(memArea[offset:offset+colBytes], isLittleEndian)
				fmt.Fprintf(w, colFormat, n)
			}
		}
		fmt.Fprintln(w, "")
		address += uint64(cols * colBytes)
	}
	w.Flush()
	return b.String()
}

func byteArrayToUInt64(buf []byte, isLittleEndian bool) uint64 {
	var n uint64
	if isLittleEndian {
		for i := len(buf) - 1; i >= 0; i-- {
			n = n<<8 + uint64(buf[i])
		}
	} else {
		for i := 0; i < len(buf); i++ {
			n = n<<8 + uint64(buf[i])
		}
	}
	return n
}
