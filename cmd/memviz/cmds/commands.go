package cmds

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-delve/memviz/pkg/config"
	"github.com/go-delve/memviz/pkg/logflags"
	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/pkg/proc/core"
	"github.com/go-delve/memviz/pkg/proc/layout"
	"github.com/go-delve/memviz/pkg/proc/native"
	"github.com/go-delve/memviz/pkg/terminal"
	"github.com/go-delve/memviz/pkg/version"
	"github.com/go-delve/memviz/service/api"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// initFile is the path to initialization file.
	initFile string
	// layouts are layout files loaded in addition to the ones in the
	// configuration file.
	layouts []string
	// format is the output format, overrides the configuration file.
	format string
	// commands are executed in order instead of starting the terminal.
	commands []string
	// symbols are the symbols of an attached process, name=addr[:type].
	symbols []string
	// verbose prints build information with the version.
	verbose bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf        *config.Config
	loadConfErr error
)

const memvizCommandLongDesc = `memviz inspects data structures in the memory of a program.

memviz reads memory, from a snapshot image or from a running process, and
walks the linked structures it finds there: chains of pointers, linked lists,
binary trees, records and hash tables. Every walk is bounded and stops
cleanly at nil pointers, unreadable memory and cycles.

The layout of the types of the program is described in YAML layout files
(see 'memviz help layout').`

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	// Config setup and load.
	conf, loadConfErr = config.LoadConfig()

	// Main memviz root command.
	rootCommand = &cobra.Command{
		Use:   "memviz",
		Short: "memviz walks and renders data structures in process memory.",
		Long:  memvizCommandLongDesc,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if loadConfErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not load configuration: %v\n", loadConfErr)
			}
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'memviz help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'memviz help log').")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal before the first prompt.")
	rootCommand.PersistentFlags().StringArrayVar(&layouts, "layout", nil, "Layout file, can be repeated (see 'memviz help layout').")
	rootCommand.PersistentFlags().StringVar(&format, "format", "", "Output format: text, json or yaml.")
	rootCommand.PersistentFlags().StringArrayVarP(&commands, "command", "c", nil, "Command to execute instead of starting the terminal, can be repeated.")

	// 'core' subcommand.
	coreCommand := &cobra.Command{
		Use:   "core <image>",
		Short: "Examine a memory snapshot image.",
		Long: `Examine a memory snapshot image.

The image is a YAML document listing mapped regions of memory, symbols and,
optionally, the layout of the types of the program:

	pointer-size: 8
	layouts: [types.yml]
	regions:
	  - addr: 0x1000
	    words: [1, 0x1010, 2, 0]
	symbols:
	  - {name: head, addr: 0x1000, type: Node}
`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("you must provide an image file")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(func() (*proc.Target, error) { return openCore(args[0]) }))
		},
	}
	rootCommand.AddCommand(coreCommand)

	// 'attach' subcommand.
	attachCommand := &cobra.Command{
		Use:   "attach <pid>",
		Short: "Examine the memory of a running process.",
		Long: `Examine the memory of a running process.

The process is not stopped, structures it modifies while they are walked
may be seen in an inconsistent state. Types come from the layout files,
symbols must be given with --symbol, for example:

	memviz attach --layout types.yml --symbol head=0xc000010000:Node 1234

Any address can also be examined with a conversion, as in (*Node)(0xc000010000).
Only supported on linux.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("you must provide a PID")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid pid: %s\n", args[0])
				os.Exit(1)
			}
			os.Exit(execute(func() (*proc.Target, error) { return attach(pid) }))
		},
	}
	attachCommand.Flags().StringArrayVar(&symbols, "symbol", nil, "Symbol of the process, name=addr[:type], can be repeated.")
	rootCommand.AddCommand(attachCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memviz\n%s\n", version.MemvizVersion)
			if verbose {
				fmt.Printf("Build Details: %s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&verbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	walker		Log walks of data structures (default)
	oracle		Log expression evaluation and loading of images
	starlark	Log execution of starlark scripts
	terminal	Log commands executed by the terminal

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	rootCommand.AddCommand(&cobra.Command{
		Use:   "layout",
		Short: "Help about layout files.",
		Long: `A layout file describes the composite types of a program in YAML:

	pointer-size: 8
	byte-order: little
	types:
	  - name: Node
	    fields:
	      - {name: value, offset: 0, type: int64}
	      - {name: next, offset: 8, type: "*Node"}

Field types are written with Go syntax: named types, scalars (int8 to
int64, uint8 to uint64, int, uint, uintptr, byte, char, bool, float32 and
float64), *T, [N]T and *void for untyped memory. The size of a type is computed from its
last field unless it is given with size. Types can be used before their declaration, a type
can not contain itself other than through a pointer.

Layout files are loaded from the layouts list of the configuration file
and from --layout flags, in this order.
`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// allLayouts returns the layout files of the configuration followed by the
// ones given on the command line.
func allLayouts() []string {
	r := make([]string, 0, len(conf.Layouts)+len(layouts))
	r = append(r, conf.Layouts...)
	return append(r, layouts...)
}

func openCore(path string) (*proc.Target, error) {
	img, err := core.Open(path, allLayouts()...)
	if err != nil {
		return nil, err
	}
	return img.Target(), nil
}

func attach(pid int) (*proc.Target, error) {
	p, err := native.Attach(pid)
	if err != nil {
		return nil, err
	}
	ts, err := loadTypes(allLayouts())
	if err != nil {
		return nil, err
	}
	syms := make([]proc.Symbol, 0, len(symbols))
	for _, s := range symbols {
		sym, err := parseSymbol(ts, s)
		if err != nil {
			return nil, err
		}
		syms = append(syms, sym)
	}
	return proc.NewTarget(p, ts, syms), nil
}

// loadTypes returns a registry with the types of the layout files. The
// pointer size and byte order are those of the first file.
func loadTypes(paths []string) (*proc.Types, error) {
	files := make([]*layout.File, 0, len(paths))
	for _, path := range paths {
		f, err := layout.LoadFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	head := &layout.File{}
	if len(files) > 0 {
		head = files[0]
	}
	ts, err := head.NewTypes()
	if err != nil {
		return nil, err
	}
	for i, f := range files {
		if err := f.Define(ts); err != nil {
			return nil, fmt.Errorf("%s: %v", paths[i], err)
		}
	}
	return ts, nil
}

// parseSymbol parses a symbol definition, name=addr[:type]. Symbols
// without a type designate untyped memory.
func parseSymbol(ts *proc.Types, def string) (proc.Symbol, error) {
	eq := strings.Index(def, "=")
	if eq <= 0 {
		return proc.Symbol{}, fmt.Errorf("malformed symbol %q, expected name=addr[:type]", def)
	}
	sym := proc.Symbol{Name: def[:eq]}
	rest := def[eq+1:]
	var typ string
	if colon := strings.Index(rest, ":"); colon >= 0 {
		rest, typ = rest[:colon], rest[colon+1:]
	}
	addr, err := strconv.ParseUint(rest, 0, 64)
	if err != nil {
		return proc.Symbol{}, fmt.Errorf("malformed address in symbol %q: %v", def, err)
	}
	sym.Addr = addr
	if typ != "" {
		sym.Type, err = ts.Parse(typ)
		if err != nil {
			return proc.Symbol{}, fmt.Errorf("symbol %s: %v", sym.Name, err)
		}
	}
	return sym, nil
}

// execute opens a target and runs the terminal on it, the return value is
// the exit status.
func execute(open func() (*proc.Target, error)) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	c, err := terminalConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	target, err := open()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	term := terminal.New(target, c)
	term.InitFile = initFile
	if len(commands) > 0 {
		return term.Exec(commands)
	}
	status, err := term.Run()
	if err != nil {
		fmt.Println(err)
	}
	return status
}

// terminalConfig returns the configuration used by the terminal, with the
// command line overrides applied.
func terminalConfig() (*config.Config, error) {
	if format == "" {
		return conf, nil
	}
	if _, err := api.FormatterByName(format); err != nil {
		return nil, err
	}
	c := *conf
	c.Format = strings.ToLower(format)
	return &c, nil
}
