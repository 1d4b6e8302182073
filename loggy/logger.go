package loggy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var ECHO bool = false
var LogFolder string = "./logs/"

type Logger struct {
	id  int
	app string
	sl  *slog.Logger
}

var (
	mu      sync.Mutex
	loggers map[int]*Logger
	app     string
	out     io.Writer = io.Discard
	logFile *os.File
	level   = new(slog.LevelVar)
)

// Init opens a log file under LogFolder for the named application. Until Init
// is called loggers discard everything (unless ECHO is set).
func Init(name string) error {
	mu.Lock()
	defer mu.Unlock()

	if name == "" {
		name = "diskprobe"
	}
	app = name

	if err := os.MkdirAll(LogFolder, 0755); err != nil {
		return fmt.Errorf("failed to create log folder: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.log", app, fts())
	f, err := os.Create(filepath.Join(LogFolder, filename))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	out = f
	loggers = nil
	return nil
}

// Close flushes and closes the current log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Sync()
		logFile.Close()
		logFile = nil
	}
	out = io.Discard
	loggers = nil
}

func SetDebug(on bool) {
	if on {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

func Get(id int) *Logger {
	mu.Lock()
	defer mu.Unlock()
	if loggers == nil {
		loggers = make(map[int]*Logger)
	}
	l, ok := loggers[id]
	if !ok {
		l = newLogger(id, app)
		loggers[id] = l
	}
	return l
}

func newLogger(id int, app string) *Logger {
	if app == "" {
		app = "diskprobe"
	}
	w := out
	if ECHO {
		w = io.MultiWriter(out, os.Stderr)
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{
		id:  id,
		app: app,
		sl:  slog.New(h).With("app", app, "worker", id),
	}
}

func fts() string {
	return time.Now().Format("20060102150405")
}

func (l *Logger) logf(lvl slog.Level, format string, v ...interface{}) {
	l.sl.Log(context.Background(), lvl, fmt.Sprintf(format, v...))
}

func (l *Logger) log(lvl slog.Level, v ...interface{}) {
	l.sl.Log(context.Background(), lvl, fmt.Sprint(v...))
}

// Slog exposes the underlying structured logger for callers that want
// key/value attributes.
func (l *Logger) Slog() *slog.Logger {
	return l.sl
}

func (l *Logger) Logf(format string, v ...interface{}) {
	l.logf(slog.LevelInfo, format, v...)
}

func (l *Logger) Log(v ...interface{}) {
	l.log(slog.LevelInfo, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logf(slog.LevelError, format, v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.log(slog.LevelError, v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logf(slog.LevelDebug, format, v...)
}

func (l *Logger) Debug(v ...interface{}) {
	l.log(slog.LevelDebug, v...)
}

// Fatalf logs at error level and exits.
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logf(slog.LevelError+4, format, v...)
	Close()
	os.Exit(1)
}
