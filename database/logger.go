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

package database

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/hummer/utils"
)

// LoggerName is the name of the logrus logger backing DefaultLogger.
const LoggerName = "DATABASE"

var packageLogger atomic.Value // loggerBox

type loggerBox struct{ Logger }

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var logLevels = [...]logrus.Level{
	LogLevelDebug: logrus.DebugLevel,
	LogLevelInfo:  logrus.InfoLevel,
	LogLevelWarn:  logrus.WarnLevel,
	LogLevelError: logrus.ErrorLevel,
}

func (l LogLevel) logrus() logrus.Level {
	if l < LogLevelDebug || int(l) >= len(logLevels) {
		return logrus.DebugLevel
	}
	return logLevels[l]
}

func (l LogLevel) String() string {
	return l.logrus().String()
}

// Logger is the structured logger shared by sessions, factories and
// configuration stores. Fields are alternating key/value pairs.
type Logger interface {
	SetLevel(LogLevel)
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// InitLogger replaces the package logger used when no logger is passed
// explicitly.
func InitLogger(log Logger) {
	if log != nil {
		packageLogger.Store(loggerBox{log})
	}
}

func GetLogger() Logger {
	if box, ok := packageLogger.Load().(loggerBox); ok {
		return box.Logger
	}
	packageLogger.CompareAndSwap(nil, loggerBox{NewDefaultLogger(utils.NewLogger(LoggerName))})
	return packageLogger.Load().(loggerBox).Logger
}

func init() {
	utils.SkipCallerFrames(reflect.TypeFor[DefaultLogger]().PkgPath() + ".(*DefaultLogger).")
}

// DefaultLogger writes through a logrus logger, turning key/value pairs
// into logrus fields.
type DefaultLogger struct {
	entry *logrus.Entry
}

func NewDefaultLogger(logger *utils.Logger) *DefaultLogger {
	return &DefaultLogger{entry: logrus.NewEntry(logger)}
}

// With returns a logger that adds fields to every entry.
func (l *DefaultLogger) With(fields ...interface{}) *DefaultLogger {
	return &DefaultLogger{entry: l.entry.WithFields(toFields(fields))}
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	l.entry.WithFields(toFields(fields)).Debug(msg)
}

func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.entry.WithFields(toFields(fields)).Info(msg)
}

func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.entry.WithFields(toFields(fields)).Warn(msg)
}

func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.entry.WithFields(toFields(fields)).Error(msg)
}

// SetLevel changes the level of the underlying logrus logger, which is
// shared with every DefaultLogger derived from it.
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.entry.Logger.SetLevel(level.logrus())
}

func toFields(fields []interface{}) logrus.Fields {
	out := make(logrus.Fields, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		out[fmt.Sprint(fields[i])] = fields[i+1]
	}
	if len(fields)%2 == 1 {
		out["!BADKEY"] = fields[len(fields)-1]
	}
	return out
}
