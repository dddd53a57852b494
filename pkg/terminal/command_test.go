package terminal

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-delve/memviz/pkg/config"
	"github.com/go-delve/memviz/pkg/proc/core"
)

func newTestTerm(t *testing.T) (*Term, *bytes.Buffer) {
	t.Helper()
	img, err := core.Open(filepath.Join("testdata", "heap.yml"))
	if err != nil {
		t.Fatal(err)
	}
	term := New(img.Target(), &config.Config{})
	buf := new(bytes.Buffer)
	term.stdout = &transcriptWriter{pw: &pagingWriter{w: buf}}
	term.starlarkEnv.Redirect(term.stdout)
	term.color = false
	return term, buf
}

func (term *Term) mustExec(t *testing.T, buf *bytes.Buffer, cmdstr string) []string {
	t.Helper()
	buf.Reset()
	if err := term.cmds.Call(cmdstr, term); err != nil {
		t.Fatalf("%s: %v", cmdstr, err)
	}
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func checkLines(t *testing.T, cmdstr string, got, want []string) {
	t.Helper()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("%s: got:\n%s\nexpected:\n%s", cmdstr, strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestListCommand(t *testing.T) {
	term, buf := newTestTerm(t)
	checkLines(t, "list head value", term.mustExec(t, buf, "list head value"), []string{
		"list: (Node) 0x1000 [end=null nodes=3]",
		"\t[0]: (Node) 0x1000",
		"\t\tvalue: (int64) 0x1000 = 1",
		"\t[1]: (Node) 0x1010",
		"\t\tvalue: (int64) 0x1010 = 2",
		"\t[2]: (Node) 0x1020",
		"\t\tvalue: (int64) 0x1020 = 3",
		"\t[3]: <nil>",
	})

	lines := term.mustExec(t, buf, "ll -n 1 head")
	if lines[0] != "list: (Node) 0x1000 [end=truncated nodes=1]" {
		t.Errorf("wrong first line %q", lines[0])
	}

	lines = term.mustExec(t, buf, "list cyc")
	if lines[0] != "list: (Node) 0x1100 [end=cycle nodes=2]" {
		t.Errorf("wrong first line %q", lines[0])
	}
	if last := lines[len(lines)-1]; last != "\t[2]: <cycle detected 0x1100>" {
		t.Errorf("wrong last line %q", last)
	}
}

func TestPtrchainCommand(t *testing.T) {
	term, buf := newTestTerm(t)
	checkLines(t, "ptrchain pp", term.mustExec(t, buf, "ptrchain pp"), []string{
		"ptrchain: (**Node) 0x1400 [end=value]",
		"\t[0]: (**Node) 0x1400 = 0x1408",
		"\t[1]: (*Node) 0x1408 = 0x1000",
		"\t[2]: (Node) 0x1000",
	})

	lines := term.mustExec(t, buf, "pc -d 1 pp")
	if lines[0] != "ptrchain: (**Node) 0x1400 [end=truncated]" || lines[len(lines)-1] != "\t[1]: <max depth reached>" {
		t.Errorf("depth bound ignored:\n%s", strings.Join(lines, "\n"))
	}

	lines = term.mustExec(t, buf, "ptrchain -o 0,0x10 pp")
	if lines[1] != "\t[0]: (**Node) 0x1400 = 0x1408 [offset=0x0]" {
		t.Errorf("wrong first hop %q", lines[1])
	}

	if err := term.cmds.Call("ptrchain -o zz pp", term); err == nil {
		t.Error("invalid offset accepted")
	}
	if err := term.cmds.Call("ptrchain", term); err == nil {
		t.Error("missing expression accepted")
	}
}

func TestTreeCommand(t *testing.T) {
	term, buf := newTestTerm(t)
	checkLines(t, "tree root", term.mustExec(t, buf, "tree root"), []string{
		"root: (Tree) 0x1200 = 2",
		"\tL: (Tree) 0x1220 = 1 [path=L]",
		"\t\tL: <nil>",
		"\t\tR: <nil>",
		"\tR: (Tree) 0x1240 = 3 [path=R]",
		"\t\tL: <nil>",
		"\t\tR: <nil>",
	})

	lines := term.mustExec(t, buf, "tree -d 0 root")
	checkLines(t, "tree -d 0 root", lines, []string{
		"root: (Tree) 0x1200 = 2",
		"\tL: <max depth reached>",
		"\tR: <max depth reached>",
	})
}

func TestPrintAndHashmapCommands(t *testing.T) {
	term, buf := newTestTerm(t)
	lines := term.mustExec(t, buf, "print head")
	if lines[0] != "(Node) 0x1000" {
		t.Errorf("wrong first line %q", lines[0])
	}
	if !strings.Contains(buf.String(), "value: (int64) 0x1000 = 1") {
		t.Errorf("first member missing:\n%s", buf.String())
	}

	lines = term.mustExec(t, buf, "hashmap table")
	if lines[0] != "HashMap(size=2, capacity=4): (Map) 0x1300" {
		t.Errorf("wrong first line %q", lines[0])
	}
	for _, want := range []string{"bucket[0]", "bucket[2]"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("%s missing:\n%s", want, buf.String())
		}
	}
	if strings.Contains(buf.String(), "bucket[1]") {
		t.Errorf("empty bucket shown:\n%s", buf.String())
	}

	lines = term.mustExec(t, buf, "hm -n 1 table")
	if last := lines[len(lines)-1]; last != "\t..." {
		t.Errorf("bucket bound not shown, last line %q", last)
	}
}

func TestMemoryCommands(t *testing.T) {
	term, buf := newTestTerm(t)

	lines := term.mustExec(t, buf, "whatis Node")
	checkLines(t, "whatis Node", lines[:1], []string{"Node (composite, size 16)"})
	if !strings.Contains(buf.String(), "next") {
		t.Errorf("missing member:\n%s", buf.String())
	}

	lines = term.mustExec(t, buf, "whatis head.next")
	checkLines(t, "whatis head.next", lines, []string{
		"address: 0x1008",
		"*Node (pointer, size 8)",
		"element: Node",
	})

	lines = term.mustExec(t, buf, "types ^(Node|Tree)$")
	checkLines(t, "types", lines, []string{"Node", "Tree"})

	lines = term.mustExec(t, buf, "symbols ^h")
	if len(lines) != 1 || strings.Join(strings.Fields(lines[0]), " ") != "head 0x1000 Node" {
		t.Errorf("wrong symbols output %q", lines)
	}

	term.mustExec(t, buf, "x -c 8 0x1000")
	if !strings.HasPrefix(buf.String(), "0x1000:") || !strings.Contains(buf.String(), "0x01") {
		t.Errorf("wrong examinemem output %q", buf.String())
	}
	term.mustExec(t, buf, "x -c 2 -s 8 -f dec head.next")
	if !strings.HasPrefix(buf.String(), "0x1010:") || !strings.Contains(buf.String(), "4128") {
		t.Errorf("wrong examinemem output %q", buf.String())
	}

	for _, cmdstr := range []string{"x -f foo 0x1000", "x -s 9 0x1000", "x -c 0 0x1000", "x", "x 0x900000"} {
		if err := term.cmds.Call(cmdstr, term); err == nil {
			t.Errorf("%s: no error", cmdstr)
		}
	}
}

func TestFormatCommand(t *testing.T) {
	term, buf := newTestTerm(t)
	checkLines(t, "format", term.mustExec(t, buf, "format"), []string{"text"})
	term.mustExec(t, buf, "format json")
	term.mustExec(t, buf, "list head")
	if !strings.Contains(buf.String(), `"label": "list"`) {
		t.Errorf("not json:\n%s", buf.String())
	}
	term.mustExec(t, buf, "format yaml")
	term.mustExec(t, buf, "list head")
	if !strings.Contains(buf.String(), "label: list") {
		t.Errorf("not yaml:\n%s", buf.String())
	}
	if err := term.cmds.Call("format xml", term); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestNoTarget(t *testing.T) {
	term := New(nil, nil)
	term.stdout = &transcriptWriter{pw: &pagingWriter{w: new(bytes.Buffer)}}
	for _, cmdstr := range []string{"list head", "ptrchain pp", "types", "symbols", "whatis Node", "x 0x1000"} {
		if err := term.cmds.Call(cmdstr, term); err != errNoTarget {
			t.Errorf("%s: expected %v, got %v", cmdstr, errNoTarget, err)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	term, buf := newTestTerm(t)
	term.mustExec(t, buf, "config max-nodes 1")
	lines := term.mustExec(t, buf, "list head")
	if lines[0] != "list: (Node) 0x1000 [end=truncated nodes=1]" {
		t.Errorf("max-nodes ignored: %q", lines[0])
	}

	term.mustExec(t, buf, "config format yaml")
	if term.format != "yaml" {
		t.Errorf("format not applied: %q", term.format)
	}
	if err := term.cmds.Call("config format xml", term); err == nil {
		t.Error("invalid format accepted")
	}
	if err := term.cmds.Call("config nosuchparam 1", term); err == nil {
		t.Error("unknown parameter accepted")
	}

	term.mustExec(t, buf, `config layouts "a b.yml" c.yml`)
	if !reflect.DeepEqual(term.conf.Layouts, []string{"a b.yml", "c.yml"}) {
		t.Errorf("wrong layouts %q", term.conf.Layouts)
	}

	term.mustExec(t, buf, "config -list")
	if !strings.Contains(buf.String(), "max-nodes") {
		t.Errorf("config -list output:\n%s", buf.String())
	}
}

func TestConfigAlias(t *testing.T) {
	term, buf := newTestTerm(t)
	term.mustExec(t, buf, "config alias list walklist")
	if !reflect.DeepEqual(term.conf.Aliases["list"], []string{"walklist"}) {
		t.Fatalf("alias not saved: %v", term.conf.Aliases)
	}
	lines := term.mustExec(t, buf, "walklist head")
	if lines[0] != "list: (Node) 0x1000 [end=null nodes=3]" {
		t.Errorf("alias does not run list: %q", lines[0])
	}
	term.mustExec(t, buf, "config alias walklist")
	if err := term.cmds.Call("walklist head", term); err != noCmdError {
		t.Errorf("alias not removed: %v", err)
	}
	if err := term.cmds.Call("config alias a b c", term); err == nil {
		t.Error("too many arguments accepted")
	}
}

func TestHelp(t *testing.T) {
	term, buf := newTestTerm(t)
	term.mustExec(t, buf, "help")
	for _, want := range []string{"Walking data structures:", "ptrchain (alias: pc)", "Viewing memory, types and symbols:"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("%q missing from help:\n%s", want, buf.String())
		}
	}
	lines := term.mustExec(t, buf, "help ll")
	if lines[0] != "Walks a singly linked list." {
		t.Errorf("wrong help %q", lines[0])
	}
	if err := term.cmds.Call("help nosuchcommand", term); err != noCmdError {
		t.Errorf("expected %v, got %v", noCmdError, err)
	}
}

func TestSplitArgs(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"head", []string{"head"}},
		{`-l link "a b" c`, []string{"-l", "link", "a b", "c"}},
		{`'(*Node)(0x1000)' value`, []string{"(*Node)(0x1000)", "value"}},
	} {
		got, err := splitArgs(tc.in)
		if err != nil {
			t.Errorf("%q: %v", tc.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%q: got %q, expected %q", tc.in, got, tc.want)
		}
	}
	if _, err := splitArgs("a `b`"); err == nil {
		t.Error("backtick accepted")
	}
	if _, err := splitArgs("a | b"); err == nil {
		t.Error("pipe accepted")
	}
}

func TestComplete(t *testing.T) {
	term, _ := newTestTerm(t)
	if got := term.complete("hash"); !reflect.DeepEqual(got, []string{"hashmap"}) {
		t.Errorf("command completion: %q", got)
	}
	if got := term.complete("list h"); !reflect.DeepEqual(got, []string{"list head"}) {
		t.Errorf("symbol completion: %q", got)
	}
	if got := term.complete("list -n "); got != nil {
		t.Errorf("completion of empty word: %q", got)
	}
}

func TestSourceCommand(t *testing.T) {
	term, buf := newTestTerm(t)
	dir := t.TempDir()

	cmds := filepath.Join(dir, "cmds.txt")
	if err := os.WriteFile(cmds, []byte("# comment\nlist -n 1 head\nnosuchcommand\n"), 0640); err != nil {
		t.Fatal(err)
	}
	term.mustExec(t, buf, "source "+cmds)
	out := buf.String()
	if !strings.Contains(out, "end=truncated nodes=1") {
		t.Errorf("command not executed:\n%s", out)
	}
	if !strings.Contains(out, cmds+":3: command not available") {
		t.Errorf("error not reported:\n%s", out)
	}

	script := filepath.Join(dir, "nodes.star")
	src := `
def command_nodes(args):
    "prints the number of nodes of a list"
    print(walk_list(args)["annotations"]["nodes"])
`
	if err := os.WriteFile(script, []byte(src), 0640); err != nil {
		t.Fatal(err)
	}
	term.mustExec(t, buf, "source "+script)
	checkLines(t, "nodes cyc", term.mustExec(t, buf, "nodes cyc"), []string{"2"})
	checkLines(t, "help nodes", term.mustExec(t, buf, "help nodes"), []string{"prints the number of nodes of a list"})
}

func TestTranscript(t *testing.T) {
	term, buf := newTestTerm(t)
	path := filepath.Join(t.TempDir(), "transcript.txt")
	term.mustExec(t, buf, "transcript -x "+path)
	term.mustExec(t, buf, "format")
	if buf.Len() != 0 {
		t.Errorf("output not suppressed: %q", buf.String())
	}
	term.mustExec(t, buf, "transcript -off")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "text\n") || !strings.Contains(string(data), defaultPrompt+"format\n") {
		t.Errorf("wrong transcript %q", data)
	}
}

func TestExec(t *testing.T) {
	term, buf := newTestTerm(t)
	if status := term.Exec([]string{"list -n 1 head", "exit", "nosuchcommand"}); status != 0 {
		t.Errorf("exit status %d", status)
	}
	if !strings.Contains(buf.String(), "nodes=1") {
		t.Errorf("command not executed:\n%s", buf.String())
	}

	term, _ = newTestTerm(t)
	if status := term.Exec([]string{"nosuchcommand"}); status != 1 {
		t.Errorf("exit status %d for failing command", status)
	}
}
