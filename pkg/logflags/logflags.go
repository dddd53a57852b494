package logflags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var walker = false
var oracle = false
var starlarkLog = false
var terminal = false
var anyFlags = false

var logOut io.WriteCloser

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if !flag {
		return makeLogger(logrus.ErrorLevel, fields)
	}
	return makeLogger(logrus.DebugLevel, fields)
}

// Any returns true if any logging is enabled.
func Any() bool {
	return anyFlags
}

// Walker returns true if the walkers should log every node they visit.
func Walker() bool {
	return walker
}

// WalkerLogger returns a logger for the walk package.
func WalkerLogger() Logger {
	return makeFlaggableLogger(walker, Fields{"layer": "walker"})
}

// Oracle returns true if reads and evaluations of target memory should be
// logged.
func Oracle() bool {
	return oracle
}

// OracleLogger returns a logger for the proc package.
func OracleLogger() Logger {
	return makeFlaggableLogger(oracle, Fields{"layer": "oracle"})
}

// Starlark returns true if the starlark bindings should log.
func Starlark() bool {
	return starlarkLog
}

// StarlarkLogger returns a logger for the starlark bindings.
func StarlarkLogger() Logger {
	return makeFlaggableLogger(starlarkLog, Fields{"layer": "starlark"})
}

// Terminal returns true if the terminal should log the commands it runs.
func Terminal() bool {
	return terminal
}

// TerminalLogger returns a logger for the terminal.
func TerminalLogger() Logger {
	return makeFlaggableLogger(terminal, Fields{"layer": "terminal"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets logging flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "memviz-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "walker"
	}
	anyFlags = true
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		// If adding another value, do make sure to
		// update "Help about logging flags" in commands.go.
		switch logcmd {
		case "walker":
			walker = true
		case "oracle":
			oracle = true
		case "starlark":
			starlarkLog = true
		case "terminal":
			terminal = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q, run 'memviz help log' for usage.\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
		logOut = nil
	}
}

// textFormatter is a simplified version of logrus.TextFormatter that
// doesn't make logs unreadable when they are output to a text file or to a
// terminal that doesn't support colors.
type textFormatter struct {
}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString(entry.Time.Format("2006-01-02T15:04:05Z07:00"))
	b.WriteByte(' ')
	b.WriteString(entry.Level.String())
	b.WriteByte(' ')
	for i, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		stringVal, ok := entry.Data[key].(string)
		if !ok {
			stringVal = fmt.Sprint(entry.Data[key])
		}
		if f.needsQuoting(stringVal) {
			fmt.Fprintf(b, "%q", stringVal)
		} else {
			b.WriteString(stringVal)
		}
		if i != len(keys)-1 {
			b.WriteByte(',')
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *textFormatter) needsQuoting(text string) bool {
	for _, ch := range text {
		if !((ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.' || ch == '_' || ch == '/' || ch == '@' || ch == '^' || ch == '+') {
			return true
		}
	}
	return false
}

var textFormatterInstance = &textFormatter{}
