package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const logDirEnvVar = "RETOUCH_LOG_DIR"

// Level is the severity of a log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Category selects the backing log file.
type Category string

const (
	CategoryService Category = "service"
	CategoryLLM     Category = "llm"
)

var (
	categoryMu      sync.Mutex
	categoryLoggers = make(map[Category]*FileLogger)
	defaultLevel    = LevelInfo
	logDirOverride  string
)

// FileLogger writes formatted lines to a per-category file under the log
// directory. Instances created for the same category share the file handle.
type FileLogger struct {
	out       *log.Logger
	closer    io.Closer
	mu        *sync.Mutex
	level     Level
	component string
	category  Category
	sessionID string
}

// ParseLevel maps a config string to a Level. Unknown values map to info.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetDefaultLevel changes the minimum level used by loggers created afterwards.
func SetDefaultLevel(level Level) {
	categoryMu.Lock()
	defer categoryMu.Unlock()
	defaultLevel = level
	for _, base := range categoryLoggers {
		base.level = level
	}
}

// NewWriterLogger builds a FileLogger over an arbitrary writer. Used by tests
// and by the CLI when logging to stderr.
func NewWriterLogger(w io.Writer, component string, level Level) *FileLogger {
	return &FileLogger{
		out:       log.New(w, "", 0),
		mu:        &sync.Mutex{},
		level:     level,
		component: component,
		category:  CategoryService,
	}
}

func newCategorizedLogger(category Category, component string) *FileLogger {
	base, level := baseLogger(category)
	return &FileLogger{
		out:       base.out,
		closer:    base.closer,
		mu:        base.mu,
		level:     level,
		component: component,
		category:  category,
	}
}

func baseLogger(category Category) (*FileLogger, Level) {
	categoryMu.Lock()
	defer categoryMu.Unlock()

	if logger, ok := categoryLoggers[category]; ok {
		return logger, logger.level
	}
	logger := &FileLogger{mu: &sync.Mutex{}, level: defaultLevel, category: category}
	file, err := openLogFile(category)
	if err != nil {
		log.Printf("logging disabled for %s: %v", category, err)
	} else {
		logger.out = log.New(file, "", 0)
		logger.closer = file
	}
	categoryLoggers[category] = logger
	return logger, logger.level
}

// SetLogDirectory redirects category log files opened afterwards. An empty
// dir restores the environment/home default.
func SetLogDirectory(dir string) {
	categoryMu.Lock()
	defer categoryMu.Unlock()
	logDirOverride = strings.TrimSpace(dir)
}

// resolveLogDirectory is called with categoryMu held.
func resolveLogDirectory() (string, error) {
	if logDirOverride != "" {
		return logDirOverride, nil
	}
	if override := strings.TrimSpace(os.Getenv(logDirEnvVar)); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".retouch", "logs"), nil
}

func logFileName(category Category) string {
	switch category {
	case CategoryLLM:
		return "retouch-llm.log"
	default:
		return "retouch-service.log"
	}
}

func openLogFile(category Category) (*os.File, error) {
	dir, err := resolveLogDirectory()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, logFileName(category)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// SetLevel sets the minimum level for this logger.
func (l *FileLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// WithSession returns a copy that tags every line with the session id.
func (l *FileLogger) WithSession(sessionID string) *FileLogger {
	if l == nil {
		return nil
	}
	clone := *l
	clone.sessionID = strings.TrimSpace(sessionID)
	return &clone
}

// Close releases the shared file handle.
func (l *FileLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *FileLogger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *FileLogger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *FileLogger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *FileLogger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

func (l *FileLogger) log(level Level, format string, args ...any) {
	if l == nil || l.out == nil || level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
	}

	component := l.component
	if component == "" {
		component = "retouch"
	}
	category := strings.ToUpper(string(l.category))
	if category == "" {
		category = "SERVICE"
	}

	// 2026-01-02 15:04:05 [INFO] [SERVICE] [loop] loop.go:88 - message
	prefix := fmt.Sprintf("%s [%s] [%s] [%s]", time.Now().Format("2006-01-02 15:04:05"), levelName(level), category, component)
	if l.sessionID != "" {
		prefix += fmt.Sprintf(" [session=%s]", l.sessionID)
	}
	message := strings.ReplaceAll(fmt.Sprintf(format, args...), "\n", "\\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("%s %s:%d - %s", prefix, file, line, message)
}

func levelName(level Level) string {
	switch level {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}
