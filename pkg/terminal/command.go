// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"
	"github.com/spf13/pflag"

	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/pkg/walk"
	"github.com/go-delve/memviz/service/api"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the memviz terminal.
type Commands struct {
	cmds    []command
	aliases *trie.Trie
}

var (
	errNoTarget = errors.New("no memory image or process loaded")
	noCmdError  = errors.New("command not available")
)

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"ptrchain", "pc"}, group: walkCmds, cmdFn: ptrchainCommand, helpMsg: `Follows a chain of pointers.

	ptrchain [-d <max depth>] <expr>
	ptrchain -o <offset>[,<offset>...] <expr>

Starting at the value of expr, dereferences pointers until a nil pointer,
an unreadable address, an address that was already visited or the maximum
depth is reached. Untyped memory is read one pointer sized word at a
time. With -o the given byte offset is added to the address before each
dereference and the chain stops after the last offset.`},
		{aliases: []string{"list", "ll"}, group: walkCmds, cmdFn: listCommand, helpMsg: `Walks a singly linked list.

	list [-n <max nodes>] [-l <link field>] <expr> [field...]

Follows the link field (default "next") of every node, starting at the
node expr evaluates to, or the node it points to. For every node the
listed fields are printed. The walk stops at a nil link, an unreadable
link, a node that was already visited or after max nodes nodes.`},
		{aliases: []string{"tree"}, group: walkCmds, cmdFn: treeCommand, helpMsg: `Walks a binary tree.

	tree [-d <max depth>] [-k <key field>] [-l <left field>] [-r <right field>] <expr>

Visits the tree in pre-order, printing the key field (default "key") of
every node. Children are labelled L and R. An address reached twice is
reported as a structural anomaly.`},
		{aliases: []string{"print", "p", "struct"}, group: walkCmds, cmdFn: printCommand, helpMsg: `Prints a value and everything reachable from it.

	print [-d <max depth>] <expr>

Members of records and elements of arrays are printed recursively and
pointers are followed, up to max depth levels. Only the first 10 elements
of an array are printed.`},
		{aliases: []string{"hashmap", "hm"}, group: walkCmds, cmdFn: hashmapCommand, helpMsg: `Prints the buckets of a hash table.

	hashmap [-n <max buckets>] [-d <max depth>] [--buckets <field>] [--size <field>] [--capacity <field>] <expr>

The table is a record with a pointer to an array of bucket pointers and
two integers, by default called buckets, size and capacity. Only
non-empty buckets are printed.`},
		{aliases: []string{"whatis"}, group: memCmds, cmdFn: whatisCommand, helpMsg: `Prints the type of an expression, or the layout of a type.

	whatis <expr>
	whatis <type>`},
		{aliases: []string{"types"}, group: memCmds, cmdFn: typesCommand, helpMsg: `Print list of types.

	types [<regex>]

If regex is specified only the types matching it will be returned.`},
		{aliases: []string{"symbols", "syms"}, group: memCmds, cmdFn: symbolsCommand, helpMsg: `Print list of symbols.

	symbols [<regex>]

If regex is specified only the symbols matching it will be returned.`},
		{aliases: []string{"examinemem", "x"}, group: memCmds, cmdFn: examineMemoryCmd, helpMsg: `Examine raw memory at the given address.

Examine memory:

	examinemem [-f <format>] [-c|--len <count>] [-s <size>] <address>
	examinemem [-f <format>] [-c|--len <count>] [-s <size>] <expr>

Format represents the data format and the value is one of this list (default hex): bin(binary), oct(octal), dec(decimal), hex(hexadecimal).
Length is the number of bytes (default 1) and must be less than or equal to 1000.
Address is the memory location of the target to examine. If an expression
evaluates to a pointer the memory it points to is examined, otherwise the
memory of the value itself.

For example:

    x -f bin -c 4 -s 4 0x1000
    x -f hex -c 8 head.next`},
		{aliases: []string{"format"}, cmdFn: formatCommand, helpMsg: `Sets the output format.

	format [text|json|yaml]

Without arguments prints the current format.`},
		{aliases: []string{"config"}, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration file.

	config <parameter> <value>

Changes the value of a configuration parameter.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias to <command> or removes an alias.`},
		{aliases: []string{"source"}, cmdFn: c.sourceCommand, helpMsg: `Executes a file containing a list of memviz commands

	source <path>

If path ends with the .star extension it will be interpreted as a starlark script.

If path is a single '-' character an interactive starlark interpreter will start instead. Type 'exit' to exit.`},
		{aliases: []string{"transcript"}, cmdFn: transcript, helpMsg: `Appends command output to a file.

	transcript [-t] [-x] <output file>
	transcript -off

Output of memviz's command is appended to the specified output file. If -t is specified and the output file exists it is truncated. If -x is specified output to stdout is suppressed instead.

Using the -off option disables the transcript.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: "Exit memviz."},
	}

	c.rebuildAliases()
	return c
}

func (c *Commands) rebuildAliases() {
	c.aliases = trie.New()
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			c.aliases.Add(alias, nil)
		}
	}
}

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			c.cmds[i].helpMsg = helpMsg
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
	c.aliases.Add(cmdstr, nil)
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
// If the command is an empty string it will do nothing.
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	t.log.Debugf("command %q args %q", cmdname, args)
	t.stdout.Echo(t.prompt + cmdstr + "\n")
	defer t.stdout.Flush()
	defer t.stdout.pw.Reset()
	return c.Find(cmdname)(t, args)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
	c.rebuildAliases()
}

func noCmdAvailable(t *Term, args string) error {
	return noCmdError
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return noCmdError
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// splitArgs splits a command line into words, quotes group words.
func splitArgs(args string) ([]string, error) {
	if strings.TrimSpace(args) == "" {
		return nil, nil
	}
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal command line '%s'", args)
	}
	return v[0], nil
}

// parseArgs parses the flags defined by setup from args and returns the
// remaining positional arguments. Flags must precede positional arguments.
func parseArgs(name, args string, setup func(fs *pflag.FlagSet)) ([]string, error) {
	words, err := splitArgs(args)
	if err != nil {
		return nil, err
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	if setup != nil {
		setup(fs)
	}
	if err := fs.Parse(words); err != nil {
		return nil, fmt.Errorf("%s: %v", name, err)
	}
	return fs.Args(), nil
}

func ptrchainCommand(t *Term, args string) error {
	depth := t.bounds().MaxDepth
	var offsets []string
	rest, err := parseArgs("ptrchain", args, func(fs *pflag.FlagSet) {
		fs.IntVarP(&depth, "depth", "d", depth, "")
		fs.StringSliceVarP(&offsets, "offsets", "o", nil, "")
	})
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("wrong number of arguments: ptrchain [-d <max depth>] <expr>")
	}
	w, err := t.walker()
	if err != nil {
		return err
	}
	start, err := w.Resolve(rest[0])
	if err != nil {
		return err
	}
	if len(offsets) == 0 {
		return t.printModel(w.PointerChain(start, depth))
	}
	offs := make([]int64, len(offsets))
	for i := range offsets {
		offs[i], err = strconv.ParseInt(offsets[i], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid offset %q", offsets[i])
		}
	}
	return t.printModel(w.PointerChainOffsets(start, offs))
}

func listCommand(t *Term, args string) error {
	maxNodes := t.bounds().MaxNodes
	link := "next"
	rest, err := parseArgs("list", args, func(fs *pflag.FlagSet) {
		fs.IntVarP(&maxNodes, "max", "n", maxNodes, "")
		fs.StringVarP(&link, "link", "l", link, "")
	})
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return errors.New("not enough arguments: list [-n <max nodes>] [-l <link field>] <expr> [field...]")
	}
	w, err := t.walker()
	if err != nil {
		return err
	}
	head, err := w.Resolve(rest[0])
	if err != nil {
		return err
	}
	return t.printModel(w.LinkedList(head, link, rest[1:], maxNodes))
}

func treeCommand(t *Term, args string) error {
	depth := t.bounds().MaxDepth
	key, left, right := "key", "left", "right"
	rest, err := parseArgs("tree", args, func(fs *pflag.FlagSet) {
		fs.IntVarP(&depth, "depth", "d", depth, "")
		fs.StringVarP(&key, "key", "k", key, "")
		fs.StringVarP(&left, "left", "l", left, "")
		fs.StringVarP(&right, "right", "r", right, "")
	})
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("wrong number of arguments: tree [-d <max depth>] [-k <key>] [-l <left>] [-r <right>] <expr>")
	}
	w, err := t.walker()
	if err != nil {
		return err
	}
	root, err := w.Resolve(rest[0])
	if err != nil {
		return err
	}
	return t.printModel(w.BinaryTree(root, left, right, depth, key))
}

func printCommand(t *Term, args string) error {
	depth := t.bounds().MaxDepth
	rest, err := parseArgs("print", args, func(fs *pflag.FlagSet) {
		fs.IntVarP(&depth, "depth", "d", depth, "")
	})
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errors.New("not enough arguments")
	}
	w, err := t.walker()
	if err != nil {
		return err
	}
	v, err := w.Resolve(strings.Join(rest, " "))
	if err != nil {
		return err
	}
	return t.printModel(w.Struct(v, depth))
}

func hashmapCommand(t *Term, args string) error {
	maxBuckets := t.bounds().MaxBuckets
	spec := walk.DefaultHashMapSpec()
	rest, err := parseArgs("hashmap", args, func(fs *pflag.FlagSet) {
		fs.IntVarP(&maxBuckets, "max", "n", maxBuckets, "")
		fs.IntVarP(&spec.MaxDepth, "depth", "d", spec.MaxDepth, "")
		fs.StringVar(&spec.Buckets, "buckets", spec.Buckets, "")
		fs.StringVar(&spec.Size, "size", spec.Size, "")
		fs.StringVar(&spec.Capacity, "capacity", spec.Capacity, "")
	})
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("wrong number of arguments: hashmap [-n <max buckets>] <expr>")
	}
	w, err := t.walker()
	if err != nil {
		return err
	}
	v, err := w.Resolve(rest[0])
	if err != nil {
		return err
	}
	return t.printModel(w.HashMap(v, spec, maxBuckets))
}

func whatisCommand(t *Term, args string) error {
	if len(args) == 0 {
		return errors.New("not enough arguments")
	}
	if t.target == nil {
		return errNoTarget
	}
	typ, err := t.target.Types().Parse(args)
	if err != nil {
		v, everr := t.target.Session().Evaluate(args)
		if everr != nil {
			return everr
		}
		typ = v.Type
		if !v.Addr.IsInvalid() {
			fmt.Fprintf(t.stdout, "address: %s\n", v.Addr)
		}
	}
	printTypeLayout(t.stdout, typ)
	return nil
}

func printTypeLayout(out io.Writer, typ *proc.Type) {
	fmt.Fprintf(out, "%s (%s, size %d)\n", typ, typ.Kind, typ.Size)
	switch typ.Kind {
	case proc.KindPointer, proc.KindArray:
		fmt.Fprintf(out, "element: %s\n", typ.Elem)
	case proc.KindComposite:
		w := new(tabwriter.Writer)
		w.Init(out, 0, 8, 1, ' ', 0)
		for _, f := range typ.Fields {
			name := f.Name
			if name == "" {
				name = "<anonymous>"
			}
			fmt.Fprintf(w, "\t%#x\t%s\t%s\n", f.Offset, name, f.Type)
		}
		w.Flush()
	}
}

func filterStrings(v []string, filter string) ([]string, error) {
	if filter == "" {
		return v, nil
	}
	re, err := regexp.Compile(filter)
	if err != nil {
		return nil, err
	}
	r := v[:0:0]
	for _, s := range v {
		if re.MatchString(s) {
			r = append(r, s)
		}
	}
	return r, nil
}

func typesCommand(t *Term, args string) error {
	if t.target == nil {
		return errNoTarget
	}
	names, err := filterStrings(t.target.Types().Names(), args)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(t.stdout, name)
	}
	return nil
}

func symbolsCommand(t *Term, args string) error {
	if t.target == nil {
		return errNoTarget
	}
	var re *regexp.Regexp
	if args != "" {
		var err error
		re, err = regexp.Compile(args)
		if err != nil {
			return err
		}
	}
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 1, ' ', 0)
	for _, sym := range t.target.Symbols() {
		if re != nil && !re.MatchString(sym.Name) {
			continue
		}
		fmt.Fprintf(w, "%s\t%#x\t%s\n", sym.Name, sym.Addr, sym.Type)
	}
	return w.Flush()
}

func examineMemoryCmd(t *Term, args string) error {
	var (
		format = "hex"
		count  = 1
		size   = 1
		length int
	)
	rest, err := parseArgs("examinemem", args, func(fs *pflag.FlagSet) {
		fs.StringVarP(&format, "fmt", "f", format, "")
		fs.IntVarP(&count, "count", "c", count, "")
		fs.IntVar(&length, "len", 0, "")
		fs.IntVarP(&size, "size", "s", size, "")
	})
	if err != nil {
		return err
	}
	if length != 0 {
		count = length
	}

	fmtMapToPriFmt := map[string]byte{
		"oct":         'o',
		"octal":       'o',
		"hex":         'x',
		"hexadecimal": 'x',
		"dec":         'd',
		"decimal":     'd',
		"bin":         'b',
		"binary":      'b',
	}
	priFmt, ok := fmtMapToPriFmt[format]
	if !ok {
		return fmt.Errorf("%q is not a valid format", format)
	}
	if count <= 0 {
		return errors.New("count/len must be a positive integer")
	}
	if size <= 0 || size > 8 {
		return errors.New("size must be a positive integer (<=8)")
	}
	if count*size > 1000 {
		return errors.New("read memory range (count*size) must be less than or equal to 1000 bytes")
	}
	if len(rest) == 0 {
		return errors.New("no address specified")
	}
	if t.target == nil {
		return errNoTarget
	}
	session := t.target.Session()

	expr := strings.Join(rest, " ")
	address, err := strconv.ParseUint(expr, 0, 64)
	if err != nil {
		address, err = examineAddress(session, expr)
		if err != nil {
			return err
		}
	}

	memArea, err := session.ReadBytes(address, count*size)
	if err != nil {
		return err
	}
	isLittleEndian := t.target.Types().ByteOrder == binary.LittleEndian
	fmt.Fprint(t.stdout, api.PrettyExamineMemory(address, memArea, isLittleEndian, priFmt, size))
	return nil
}

// examineAddress returns the address of the memory examined for expr: the
// target of a pointer, the value itself otherwise.
func examineAddress(o proc.Oracle, expr string) (uint64, error) {
	v, err := o.Evaluate(expr)
	if err != nil {
		return 0, err
	}
	if o.DescribeType(v).Kind == proc.KindPointer {
		v, err = o.Dereference(v)
		if err != nil {
			return 0, err
		}
	}
	if v.Addr.IsInvalid() {
		return 0, fmt.Errorf("%s has no address", expr)
	}
	return v.Addr.Raw, nil
}

func formatCommand(t *Term, args string) error {
	if args == "" {
		name := t.format
		if name == "" {
			name = "text"
		}
		fmt.Fprintln(t.stdout, name)
		return nil
	}
	if _, err := api.FormatterByName(args); err != nil {
		return err
	}
	t.format = strings.ToLower(args)
	return nil
}

// formatter returns the formatter for the current output format.
func (t *Term) formatter() (api.Formatter, error) {
	f, err := api.FormatterByName(t.format)
	if err != nil {
		return nil, err
	}
	if tf, ok := f.(api.TextFormatter); ok && t.color {
		tf.Decorate = decorate
		return tf, nil
	}
	return f, nil
}

func (t *Term) printModel(n *api.Node) error {
	f, err := t.formatter()
	if err != nil {
		return err
	}
	lines, err := f.Format(n)
	if err != nil {
		return err
	}
	t.stdout.pw.PageMaybe(nil)
	for _, l := range lines {
		fmt.Fprintln(t.stdout, l)
	}
	return nil
}

func (c *Commands) sourceCommand(t *Term, args string) error {
	if len(args) == 0 {
		return errors.New("wrong number of arguments: source <filename>")
	}

	if filepath.Ext(args) == ".star" {
		_, err := t.starlarkEnv.Execute(args, nil, "main", nil)
		return err
	}

	if args == "-" {
		return t.starlarkEnv.REPL()
	}

	return c.executeFile(t, args)
}

func transcript(t *Term, args string) error {
	if strings.TrimSpace(args) == "-off" {
		return t.stdout.CloseTranscript()
	}
	var truncate, fileOnly bool
	rest, err := parseArgs("transcript", args, func(fs *pflag.FlagSet) {
		fs.BoolVarP(&truncate, "truncate", "t", false, "")
		fs.BoolVarP(&fileOnly, "file-only", "x", false, "")
	})
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("wrong number of arguments: transcript [-t] [-x] <output file>")
	}

	flags := os.O_APPEND | os.O_WRONLY | os.O_CREATE
	if truncate {
		flags |= os.O_TRUNC
	}
	fh, err := os.OpenFile(rest[0], flags, 0660)
	if err != nil {
		return err
	}

	if err := t.stdout.CloseTranscript(); err != nil {
		fh.Close()
		return err
	}

	t.stdout.TranscribeTo(fh, fileOnly)
	return nil
}

// ExitRequestError is returned when the user
// exits memviz.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
