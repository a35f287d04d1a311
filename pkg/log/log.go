package log

import (
	"io"
	"os"
	"path"
	"sync"

	"autoflow/pkg/contextx"

	"github.com/sirupsen/logrus"
)

var (
	defaultLoggerName = "autoflow"
	loggerMu          sync.Mutex
	logger            *logrus.Logger
	options           = Options{
		Format:          defaultFormat,
		TimestampFormat: defaultTimestampFormat,
		Level:           "info",
	}
)

type Options struct {
	Format          string
	TimestampFormat string
	DirPath         string
	Level           string
}

// Initialize rebuilds the shared logger. Empty option fields keep their defaults.
func Initialize(opts Options) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if opts.Format != "" {
		options.Format = opts.Format
	}
	if opts.TimestampFormat != "" {
		options.TimestampFormat = opts.TimestampFormat
	}
	if opts.Level != "" {
		options.Level = opts.Level
	}
	options.DirPath = opts.DirPath
	logger = setupLogger()
}

func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func setupLogger() *logrus.Logger {
	formatter := NewLogFormatter()
	if options.TimestampFormat != "" {
		formatter.TimestampFormat = options.TimestampFormat
	}
	if options.Format != "" {
		formatter.OutputFormat = options.Format
	}

	var out io.Writer = os.Stdout
	if options.DirPath != "" {
		if exists, err := PathExists(options.DirPath); err == nil && !exists {
			_ = os.MkdirAll(options.DirPath, 0770)
		}
		file, err := os.OpenFile(path.Join(options.DirPath, "autoflow.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			out = file
		} else {
			os.Stderr.WriteString("open log file failed, falling back to stdout: " + err.Error() + "\n")
		}
	}

	l := logrus.New()
	l.SetOutput(out)
	level, err := logrus.ParseLevel(options.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetFormatter(formatter)
	return l
}

// AddHook attaches h to the shared logger. Initialize drops hooks.
func AddHook(h logrus.Hook) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		logger = setupLogger()
	}
	logger.AddHook(h)
}

func GetLogger(ctx interface{}, name string) *logrus.Entry {
	loggerMu.Lock()
	if logger == nil {
		logger = setupLogger()
	}
	l := logger
	loggerMu.Unlock()

	fields := logrus.Fields{
		"name":       name,
		"requestId":  "-",
		"tenant":     "-",
		"automation": "-",
	}
	switch t := ctx.(type) {
	case string:
		fields["automation"] = t
	case *contextx.Context:
		if t != nil {
			copyFields(fields, t.GetMap())
		}
	case map[string]interface{}:
		copyFields(fields, t)
	}
	return l.WithFields(fields)
}

func copyFields(fields logrus.Fields, data map[string]interface{}) {
	for _, key := range []string{contextx.KeyRequestID, contextx.KeyTenantID, contextx.KeyAutomationID} {
		if v, ok := data[key].(string); ok && v != "" {
			fields[key] = v
		}
	}
}

func Info(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Info(args...)
}

func Debug(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Debug(args...)
}

func Warn(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Warn(args...)
}

func Error(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Error(args...)
}

func Infof(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Infof(format, args...)
}

func Debugf(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Debugf(format, args...)
}

func Warnf(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Warnf(format, args...)
}

func Errorf(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Errorf(format, args...)
}
