package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/go-delve/memviz/pkg/config"
	"github.com/go-delve/memviz/pkg/logflags"
	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/pkg/terminal/starbind"
	"github.com/go-delve/memviz/pkg/walk"
)

const (
	historyFile   string = ".memviz_history"
	defaultPrompt string = "(memviz) "
)

// Term represents the terminal running memviz.
type Term struct {
	target      *proc.Target
	conf        *config.Config
	prompt      string
	line        *liner.State
	cmds        *Commands
	dumb        bool
	color       bool
	format      string
	stdout      *transcriptWriter
	starlarkEnv *starbind.Env
	symbols     *trie.Trie
	log         logflags.Logger

	// InitFile is a file of commands executed before the first prompt.
	InitFile string
}

// New returns a new Term. Target may be nil, commands that read memory
// fail until a target is set with SetTarget.
func New(target *proc.Target, conf *config.Config) *Term {
	cmds := DebugCommands()
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	if conf == nil {
		conf = &config.Config{}
	}

	var w io.Writer

	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb"
	if dumb {
		w = os.Stdout
	} else {
		w = colorable.NewColorableStdout()
	}

	color := !dumb && isatty.IsTerminal(os.Stdout.Fd())
	if conf.Color != nil {
		color = *conf.Color
	}

	prompt := defaultPrompt
	if conf.Prompt != "" {
		prompt = conf.Prompt
	}

	t := &Term{
		conf:   conf,
		prompt: prompt,
		cmds:   cmds,
		dumb:   dumb,
		color:  color,
		format: conf.Format,
		stdout: &transcriptWriter{pw: &pagingWriter{w: w}},
		log:    logflags.TerminalLogger(),
	}
	t.starlarkEnv = starbind.New(starlarkContext{t}, t.stdout)
	t.SetTarget(target)
	return t
}

// SetTarget replaces the target inspected by the terminal.
func (t *Term) SetTarget(target *proc.Target) {
	t.target = target
	t.symbols = trie.New()
	if target == nil {
		return
	}
	for _, sym := range target.Symbols() {
		t.symbols.Add(sym.Name, sym)
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
	}
	if err := t.stdout.CloseTranscript(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing transcript file: %v\n", err)
	}
}

func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		t.starlarkEnv.Cancel()
	}
}

// Run begins running memviz in the terminal.
func (t *Term) Run() (int, error) {
	t.line = liner.NewLiner()
	t.line.SetCtrlCAborts(true)
	defer t.Close()

	// Interrupts cancel the running starlark script, walks always complete.
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	go t.sigintGuard(ch)

	t.line.SetCompleter(t.complete)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}

	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Println("Type 'help' for list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Println("exit")
				return t.handleExit()
			}
			if err == liner.ErrPromptAborted {
				continue
			}
			return 1, fmt.Errorf("Prompt for input failed.\n")
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

// Exec runs cmds in order, without prompting. The returned status is 1 if
// any command failed.
func (t *Term) Exec(cmds []string) int {
	defer t.Close()
	if t.InitFile != "" {
		if err := t.cmds.executeFile(t, t.InitFile); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return 0
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
			return 1
		}
	}
	status := 0
	for _, cmdstr := range cmds {
		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				break
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
			status = 1
		}
	}
	return status
}

// complete completes command names and, after a command name, symbol
// names.
func (t *Term) complete(line string) []string {
	fields := strings.Split(line, " ")
	if len(fields) == 1 {
		c := t.cmds.aliases.PrefixSearch(strings.ToLower(line))
		sort.Strings(c)
		return c
	}
	last := fields[len(fields)-1]
	if last == "" || strings.HasPrefix(last, "-") {
		return nil
	}
	prefix := strings.Join(fields[:len(fields)-1], " ") + " "
	names := t.symbols.PrefixSearch(last)
	sort.Strings(names)
	c := make([]string, len(names))
	for i := range names {
		c[i] = prefix + names[i]
	}
	return c
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
	} else {
		if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR|os.O_TRUNC, 0666); err == nil {
			_, err = t.line.WriteHistory(f)
			if err != nil {
				fmt.Println("readline history error:", err)
			}
			f.Close()
		}
	}
	return 0, nil
}

// bounds returns the walk bounds configured by the user.
func (t *Term) bounds() walk.Config {
	var c walk.Config
	if t.conf.MaxDepth != nil {
		c.MaxDepth = *t.conf.MaxDepth
	}
	if t.conf.MaxNodes != nil {
		c.MaxNodes = *t.conf.MaxNodes
	}
	if t.conf.MaxBuckets != nil {
		c.MaxBuckets = *t.conf.MaxBuckets
	}
	return c.WithDefaults()
}

// walker returns a walker reading memory through a new session of the
// target, the session's cache lives as long as the walker.
func (t *Term) walker() (*walk.Walker, error) {
	if t.target == nil {
		return nil, errNoTarget
	}
	return walk.New(t.target.Session()), nil
}
