package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LineTimeFormat is the timestamp layout at the start of every log line.
const LineTimeFormat = "2006-01-02 15:04:05"

var (
	appLogger   = zerolog.Nop()
	proxyLogger = zerolog.Nop()
	errLogger   = zerolog.New(newLineWriter(os.Stderr)).With().Timestamp().Logger()

	mu           sync.Mutex
	logLevel     zerolog.Level = zerolog.InfoLevel
	appLogFile   *os.File
	proxyLogFile *os.File
	proxyConsole io.Writer
	initialized  bool
)

// levelNames maps zerolog level strings onto the names written to the log files.
// The log viewer filters on these.
var levelNames = map[string]string{
	zerolog.LevelTraceValue: "DEBUG",
	zerolog.LevelDebugValue: "DEBUG",
	zerolog.LevelInfoValue:  "INFO",
	zerolog.LevelWarnValue:  "WARNING",
	zerolog.LevelErrorValue: "ERROR",
	zerolog.LevelFatalValue: "CRITICAL",
	zerolog.LevelPanicValue: "CRITICAL",
}

// newLineWriter renders events as "2006-01-02 15:04:05 - LEVEL - message".
func newLineWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: LineTimeFormat,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName},
		FormatLevel: func(i interface{}) string {
			name, ok := levelNames[fmt.Sprint(i)]
			if !ok {
				name = strings.ToUpper(fmt.Sprint(i))
			}
			return "- " + name + " -"
		},
	}
}

// NewLineLogger builds a logger writing the standard line format to out.
func NewLineLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(newLineWriter(out)).Level(level).With().Timestamp().Logger()
}

// ParseLevel accepts DEBUG, INFO, WARN/WARNING, ERROR (any case). Unknown values map to INFO.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL", "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

func InitGlobalLoggers(appLogPath, proxyLogPath, level string) error {
	mu.Lock()
	defer mu.Unlock()

	lvl := ParseLevel(level)
	if initialized && appLogFile != nil && proxyLogFile != nil &&
		appLogFile.Name() == appLogPath && proxyLogFile.Name() == proxyLogPath && lvl == logLevel {
		return nil
	}
	closeFilesLocked()
	logLevel = lvl
	errLogger = NewLineLogger(os.Stderr, zerolog.ErrorLevel)

	var appWriter io.Writer = io.Discard
	actualAppLogPath := appLogPath
	if f, err := openLogFile(appLogPath); err != nil {
		errLogger.Error().Msgf("%v. App logs will be discarded.", err)
		actualAppLogPath = "(discarded)"
	} else {
		appLogFile = f
		appWriter = f
	}
	appLogger = NewLineLogger(appWriter, logLevel)

	actualProxyLogPath := proxyLogPath
	if f, err := openLogFile(proxyLogPath); err != nil {
		errLogger.Error().Msgf("%v. Proxy logs will be discarded.", err)
		actualProxyLogPath = "(discarded)"
	} else {
		proxyLogFile = f
	}
	rebuildProxyLoggerLocked()

	if !initialized {
		appLogger.Info().Msgf("App logger initialized. Log level: %s. Output file: %s", strings.ToUpper(logLevel.String()), actualAppLogPath)
		proxyLogger.Info().Msgf("Proxy logger initialized. Log level: %s. Output file: %s", strings.ToUpper(logLevel.String()), actualProxyLogPath)
	}
	initialized = true
	return nil
}

func rebuildProxyLoggerLocked() {
	var writers []io.Writer
	if proxyLogFile != nil {
		writers = append(writers, proxyLogFile)
	}
	if proxyConsole != nil {
		writers = append(writers, proxyConsole)
	}
	switch len(writers) {
	case 0:
		proxyLogger = NewLineLogger(io.Discard, logLevel)
	case 1:
		proxyLogger = NewLineLogger(writers[0], logLevel)
	default:
		proxyLogger = NewLineLogger(io.MultiWriter(writers...), logLevel)
	}
}

// MirrorProxyTo copies the proxy channel to w (typically stdout) in addition to proxy.log.
// Passing nil stops mirroring.
func MirrorProxyTo(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	proxyConsole = w
	rebuildProxyLoggerLocked()
}

// Proxy returns the proxy channel logger for components that take a logger explicitly.
func Proxy() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := proxyLogger
	return &l
}

// App returns the application channel logger.
func App() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := appLogger
	return &l
}

func Info(format string, v ...interface{}) {
	App().Info().Msgf(format, v...)
}

func Debug(format string, v ...interface{}) {
	App().Debug().Msgf(format, v...)
}

func Warn(format string, v ...interface{}) {
	App().Warn().Msgf(format, v...)
}

func Error(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	mu.Lock()
	e := errLogger
	mu.Unlock()
	e.Error().Msg(message)
	App().Error().Msg(message)
}

func Fatal(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	App().Error().Msg(message)
	mu.Lock()
	e := errLogger
	mu.Unlock()
	e.Fatal().Msg(message)
}

func ProxyInfo(format string, v ...interface{}) {
	Proxy().Info().Msgf(format, v...)
}

func ProxyDebug(format string, v ...interface{}) {
	Proxy().Debug().Msgf(format, v...)
}

func ProxyWarn(format string, v ...interface{}) {
	Proxy().Warn().Msgf(format, v...)
}

func ProxyError(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	mu.Lock()
	e := errLogger
	mu.Unlock()
	e.Error().Msg(message)
	Proxy().Error().Msg(message)
}

// PrintfLogger adapts l to the Printf-style logger goproxy and net/http expect.
// Everything it receives is library chatter and goes out at debug level.
type PrintfLogger struct {
	L *zerolog.Logger
}

func (p PrintfLogger) Printf(format string, v ...interface{}) {
	l := p.L
	if l == nil {
		l = Proxy()
	}
	l.Debug().Msg(strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
}

// Write lets PrintfLogger back a standard library *log.Logger.
func (p PrintfLogger) Write(b []byte) (int, error) {
	p.Printf("%s", b)
	return len(b), nil
}

func closeFilesLocked() {
	if appLogFile != nil {
		appLogFile.Close()
		appLogFile = nil
	}
	if proxyLogFile != nil {
		proxyLogFile.Close()
		proxyLogFile = nil
	}
}

func CloseLogFiles() {
	mu.Lock()
	defer mu.Unlock()
	if appLogFile != nil {
		appLogger.Info().Msg("Closing app log file.")
	}
	if proxyLogFile != nil {
		proxyLogger.Info().Msg("Closing proxy log file.")
	}
	closeFilesLocked()
	appLogger = zerolog.Nop()
	rebuildProxyLoggerLocked()
	// Allow re-initialization (e.g. tests)
	initialized = false
}
