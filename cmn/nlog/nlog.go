// Package nlog is the daemon's logger: buffered, timestamped, file-rotating.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E'}

const defaultMaxSize = 64 * 1024 * 1024

var (
	MaxSize int64 = defaultMaxSize

	toStderr     bool
	alsoToStderr bool

	logDir string
	title  string

	once sync.Once
	l    *logger
)

type logger struct {
	mu       sync.Mutex
	w        *bufio.Writer
	f        *os.File
	written  int64
	lastFlsh time.Time
	erred    bool
}

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

func SetLogDirRole(dir, _ string) { logDir = dir }
func SetTitle(s string)           { title = s }

func initLogger() {
	l = &logger{lastFlsh: time.Now()}
	if toStderr || logDir == "" {
		return
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "nlog: cannot create log dir %q: %v\n", logDir, err)
		return
	}
	if err := l.rotate(); err != nil {
		fmt.Fprintf(os.Stderr, "nlog: cannot open log file: %v\n", err)
	}
}

func (l *logger) rotate() error {
	if l.f != nil {
		l.w.Flush()
		l.f.Close()
	}
	name := fmt.Sprintf("%s.%s.log", filepath.Base(os.Args[0]), time.Now().Format("20060102-150405"))
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.erred = true
		return err
	}
	l.f, l.w, l.written, l.erred = f, bufio.NewWriterSize(f, 32*1024), 0, false
	if title != "" {
		l.w.WriteString(title + "\n")
	}
	return nil
}

func log(sev severity, depth int, format string, args ...any) {
	once.Do(initLogger)

	line := format1(sev, depth+1, format, args...)

	if toStderr || (alsoToStderr && sev < sevErr) {
		os.Stderr.WriteString(line)
	}
	if sev >= sevErr {
		os.Stderr.WriteString(line)
	}
	if toStderr || l == nil || l.f == nil {
		return
	}

	l.mu.Lock()
	n, err := l.w.WriteString(line)
	l.written += int64(n)
	if err != nil {
		l.erred = true
	}
	if l.written >= MaxSize {
		l.rotate()
	} else if time.Since(l.lastFlsh) > time.Second {
		l.w.Flush()
		l.lastFlsh = time.Now()
	}
	l.mu.Unlock()
}

func format1(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	b.WriteByte(sevChar[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(depth + 1); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		b.WriteString(fn)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ln))
		b.WriteByte(' ')
	}
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		if !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func Flush(exit ...bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	if l.w != nil {
		l.w.Flush()
	}
	if len(exit) > 0 && exit[0] && l.f != nil {
		l.f.Sync()
		l.f.Close()
	}
	l.mu.Unlock()
}
