package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// bridgeLogger implements the ILogger interface with custom formatting
type bridgeLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *bridgeLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *bridgeLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *bridgeLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *bridgeLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
	notifyHooks(LogLevelWarn, l.name, format, args...)
}

func (l *bridgeLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
	notifyHooks(LogLevelError, l.name, format, args...)
}

func (l *bridgeLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *bridgeLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-16s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var logOutput io.Writer = os.Stdout

// CreateLogger implements the dragonboat Factory signature
func CreateLogger(pkgName string) logger.ILogger {
	stdLogger := log.New(logOutput, "", log.Ldate|log.Ltime)

	return &bridgeLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Log Hooks (used to forward warn/error lines to the peer)
// --------------------------------------------------------------------------

// LogLevelName is the name of a forwardable log level
type LogLevelName string

const (
	LogLevelWarn  LogLevelName = "warn"
	LogLevelError LogLevelName = "error"
)

// LogHook receives every warn and error line regardless of the configured level
type LogHook func(level LogLevelName, pkg, message string)

var (
	hooksMu sync.RWMutex
	hooks   = map[int]LogHook{}
	hookSeq int
)

// AddLogHook registers a hook and returns a function that removes it again
func AddLogHook(h LogHook) (remove func()) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hookSeq++
	id := hookSeq
	hooks[id] = h
	return func() {
		hooksMu.Lock()
		defer hooksMu.Unlock()
		delete(hooks, id)
	}
}

// notifyHooks calls the hooks outside of hooksMu, a hook may block or add and remove hooks
func notifyHooks(level LogLevelName, pkg, format string, args ...interface{}) {
	hooksMu.RLock()
	if len(hooks) == 0 {
		hooksMu.RUnlock()
		return
	}
	current := make([]LogHook, 0, len(hooks))
	for _, h := range hooks {
		current = append(current, h)
	}
	hooksMu.RUnlock()

	message := fmt.Sprintf(format, args...)
	for _, h := range current {
		h(level, pkg, message)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// logLevels maps the accepted level names
var logLevels = map[string]logger.LogLevel{
	"debug":   logger.DEBUG,
	"info":    logger.INFO,
	"warning": logger.WARNING,
	"warn":    logger.WARNING,
	"error":   logger.ERROR,
}

// LookupLogLevel converts a string level to logger.LogLevel, ok is false for unknown levels
func LookupLogLevel(level string) (logger.LogLevel, bool) {
	l, ok := logLevels[strings.ToLower(level)]
	return l, ok
}

// ParseLogLevel converts a string level to logger.LogLevel. It panics on unknown levels,
// Config.Validate rejects them before.
func ParseLogLevel(level string) logger.LogLevel {
	l, ok := LookupLogLevel(level)
	if !ok {
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
	return l
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// LoggerNames lists the package loggers used by the bridge
var LoggerNames = []string{
	"bridge/codec",
	"bridge/clock",
	"bridge/outbound",
	"bridge/inbound",
	"bridge/session",
	"bridge/peer",
	"transport/base",
	"scene",
	"cmd",
}

// InitLoggers initializes all loggers with the custom format
func InitLoggers(config *Config) {
	logger.SetLoggerFactory(CreateLogger)

	level := ParseLogLevel(config.LogLevel)
	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
}
