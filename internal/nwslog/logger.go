// Package nwslog extends the standard library's logging with multiple
// independently-leveled sinks. Call AddLogger for each desired sink, then use
// the package-level functions (Debug, Info, Warn, Error, Fatal) to fan a
// message out to every sink whose level admits it.
package nwslog

import (
	"fmt"
	"io"
	golog "log"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

var (
	loggers = make(map[string]*logger)
	logLock sync.RWMutex

	history = NewRing(512)
)

type sink interface {
	Println(...interface{})
}

type logger struct {
	sink
	Level   Level
	Color   bool
	filters []string
}

// AddLogger registers a named sink that only logs events at level or higher.
func AddLogger(name string, output io.Writer, level Level, color bool) {
	logLock.Lock()
	defer logLock.Unlock()

	loggers[name] = &logger{golog.New(output, "", golog.LstdFlags), level, color, nil}
}

func DelLogger(name string) {
	logLock.Lock()
	defer logLock.Unlock()

	delete(loggers, name)
}

func Loggers() []string {
	logLock.RLock()
	defer logLock.RUnlock()

	var ret []string
	for k := range loggers {
		ret = append(ret, k)
	}
	return ret
}

// WillLog reports whether any registered sink would emit at level. Useful
// to skip building an expensive message that would be filtered anyway.
func WillLog(level Level) bool {
	logLock.RLock()
	defer logLock.RUnlock()

	for _, l := range loggers {
		if l.Level <= level {
			return true
		}
	}
	return false
}

func SetLevel(name string, level Level) error {
	logLock.Lock()
	defer logLock.Unlock()

	if loggers[name] == nil {
		return fmt.Errorf("no such logger %v", name)
	}
	loggers[name].Level = level
	return nil
}

// History returns recent log lines admitted by at least one registered
// sink's level (a line is recorded once per admitting sink), oldest first
// and newest last. Backs the metrics surface's /debug/log endpoint.
func History() []string {
	return history.Dump()
}

func (l *logger) prologue(level Level, name string) string {
	msg := strings.ToUpper(level.String()) + " "

	if name == "" {
		_, file, line, _ := runtime.Caller(4)
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				short = file[i+1:]
				break
			}
		}
		msg += short + ":" + strconv.Itoa(line) + ": "
	} else {
		msg += name + ": "
	}

	if l.Color {
		msg = colorLine + msg + colorFor(level)
	}
	return msg
}

func (l *logger) epilogue() string {
	if l.Color {
		return reset
	}
	return ""
}

func (l *logger) log(level Level, name, format string, arg ...interface{}) {
	msg := l.prologue(level, name) + fmt.Sprintf(format, arg...) + l.epilogue()
	for _, f := range l.filters {
		if strings.Contains(msg, f) {
			return
		}
	}
	history.Println(msg)
	l.Println(msg)
}

func dispatch(level Level, name, format string, arg ...interface{}) {
	logLock.RLock()
	defer logLock.RUnlock()

	for _, l := range loggers {
		if l.Level <= level {
			l.log(level, name, format, arg...)
		}
	}
}

func Debug(format string, arg ...interface{}) { dispatch(DEBUG, "", format, arg...) }
func Info(format string, arg ...interface{})  { dispatch(INFO, "", format, arg...) }
func Warn(format string, arg ...interface{})  { dispatch(WARN, "", format, arg...) }
func Error(format string, arg ...interface{}) { dispatch(ERROR, "", format, arg...) }
func Fatal(format string, arg ...interface{}) { dispatch(FATAL, "", format, arg...) }
