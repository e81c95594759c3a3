/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

var (
	defaultLevel     = ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info"))
	consoleLogFormat = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	loggerRegistryMu sync.RWMutex
	loggerRegistry   = map[string]*logrus.Logger{}
)

// ConfigureConsoleLogFormat switches newly created loggers between "text" and "json".
func ConfigureConsoleLogFormat(format string) {
	s := strings.ToLower(strings.TrimSpace(format))
	if s == "json" {
		consoleLogFormat = "json"
	} else {
		consoleLogFormat = "text"
	}
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

func RegisterLogger(name string, l *logrus.Logger) {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	loggerRegistry[name] = l
}

func SetAllLoggersLevel(lvl logrus.Level) {
	loggerRegistryMu.RLock()
	for _, lg := range loggerRegistry {
		lg.SetLevel(lvl)
	}
	loggerRegistryMu.RUnlock()
	defaultLevel = lvl
}

// NewLogger returns a named logrus logger writing to stdout. Calling it twice
// with the same name returns the registered instance.
func NewLogger(name string) *logrus.Logger {
	loggerRegistryMu.RLock()
	existing, ok := loggerRegistry[name]
	loggerRegistryMu.RUnlock()
	if ok {
		return existing
	}

	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(defaultLevel)
	l.SetReportCaller(true)
	l.AddHook(callerHook{})
	if consoleLogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		})
	} else {
		l.SetFormatter(&Log4jColorFormatter{
			LoggerName:      name,
			TimestampFormat: "2006-01-02 15:04:05.000",
			NameWidth:       10,
		})
	}
	RegisterLogger(name, l)
	return l
}

var callerWrappers sync.Map

// SkipCallerFrames makes loggers from NewLogger report the first frame outside
// functions whose name starts with prefix. Logging wrappers register their
// methods here.
func SkipCallerFrames(prefix string) {
	callerWrappers.Store(prefix, struct{}{})
}

// callerHook re-resolves entry.Caller past logrus and registered wrappers.
type callerHook struct{}

func (callerHook) Levels() []logrus.Level { return logrus.AllLevels }

func (callerHook) Fire(entry *logrus.Entry) error {
	if entry.Caller == nil {
		return nil
	}
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(2, pcs)])
	for {
		frame, more := frames.Next()
		if !skipFrame(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func skipFrame(function string) bool {
	if strings.HasPrefix(function, "github.com/sirupsen/logrus.") {
		return true
	}
	skip := false
	callerWrappers.Range(func(key, _ any) bool {
		skip = strings.HasPrefix(function, key.(string))
		return !skip
	})
	return skip
}

// Log4jColorFormatter renders "ts LEVEL pid --- name file:line : msg k=v".
type Log4jColorFormatter struct {
	LoggerName      string
	TimestampFormat string
	NameWidth       int
	DisableColors   bool
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	format := f.TimestampFormat
	if format == "" {
		format = time.RFC3339
	}
	lvl := fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String()))
	name := f.LoggerName
	if f.NameWidth > 0 {
		if r := []rune(name); len(r) > f.NameWidth {
			name = string(r[:f.NameWidth])
		}
		name = fmt.Sprintf("%*s", f.NameWidth, name)
	}

	var b strings.Builder
	b.WriteString(ts.Format(format))
	b.WriteByte(' ')
	b.WriteString(f.paint(levelColor(entry.Level), lvl))
	b.WriteByte(' ')
	b.WriteString(f.paint(color.FgMagenta, fmt.Sprintf("%-6d", os.Getpid())))
	b.WriteString(" --- ")
	b.WriteString(f.paint(color.FgCyan, name))
	if entry.Caller != nil {
		b.WriteByte(' ')
		b.WriteString(f.paint(color.Faint, filepath.Base(entry.Caller.File)+":"+strconv.Itoa(entry.Caller.Line)))
	}
	b.WriteString(" : ")
	b.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
		}
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func (f *Log4jColorFormatter) paint(attr color.Attribute, s string) string {
	if f.DisableColors {
		return s
	}
	return color.New(attr).Sprint(s)
}

func levelColor(level logrus.Level) color.Attribute {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return color.FgBlue
	case logrus.InfoLevel:
		return color.FgGreen
	case logrus.WarnLevel:
		return color.FgYellow
	default:
		return color.FgRed
	}
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
