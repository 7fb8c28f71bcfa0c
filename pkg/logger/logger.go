// Package logger is a zerolog wrapper with typed fields. Errors can also be
// batched into a Digest for an operator channel.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level      string     `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic"`
	Format     string     `yaml:"format" default:"console" validate:"oneof=json console"`
	Output     string     `yaml:"output" default:"stdout"` // stdout, stderr, or file path
	TimeFormat string     `yaml:"time_format"`
	File       FileConfig `yaml:"file"`
}

// FileConfig controls rotation when Output is a file path.
type FileConfig struct {
	MaxSize    int  `yaml:"max_size" default:"100"` // megabytes
	MaxBackups int  `yaml:"max_backups" default:"7"`
	MaxAge     int  `yaml:"max_age" default:"30"` // days
	Compress   bool `yaml:"compress"`
}

type Logger struct {
	zl     zerolog.Logger
	digest *Digest
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat

	sink, tty := openSink(cfg)
	if cfg.Format == "console" {
		sink = zerolog.ConsoleWriter{Out: sink, TimeFormat: timeFormat, NoColor: !tty}
	}

	zl := zerolog.New(sink).Level(level).With().Timestamp().CallerWithSkipFrameCount(4).Logger()
	return &Logger{zl: zl}, nil
}

// openSink resolves Output; any value other than stdout or stderr is a
// rotated file.
func openSink(cfg *Config) (io.Writer, bool) {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout, true
	case "stderr":
		return os.Stderr, false
	}
	return &lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.File.MaxSize,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAge,
		Compress:   cfg.File.Compress,
	}, false
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying fields on every entry. The child
// shares the parent's digest.
func (l *Logger) With(fields ...Field) *Logger {
	c := l.zl.With()
	for _, f := range fields {
		c = f.attach(c)
	}
	return &Logger{zl: c.Logger(), digest: l.digest}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(zerolog.DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(zerolog.InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(zerolog.WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(zerolog.ErrorLevel, msg, fields) }

func (l *Logger) write(level zerolog.Level, msg string, fields []Field) {
	ev := l.zl.WithLevel(level)
	for _, f := range fields {
		f.apply(ev)
	}
	ev.Msg(msg)

	if level == zerolog.ErrorLevel && l.digest != nil {
		l.digest.add(level.String(), msg, fields, callerOf(3))
	}
}

// callerOf formats the caller skip frames up as dir/file.go:line.
func callerOf(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
}

// AttachDigest starts batching error entries into a new digest, replacing
// any previous one. Call it before deriving child loggers.
func (l *Logger) AttachDigest(cfg DigestConfig) {
	l.DetachDigest()
	l.digest = NewDigest(cfg)
}

// DetachDigest flushes and stops the digest.
func (l *Logger) DetachDigest() {
	if l.digest != nil {
		l.digest.Close()
		l.digest = nil
	}
}

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

func (f Field) apply(ev *zerolog.Event) {
	switch v := f.Value.(type) {
	case string:
		ev.Str(f.Key, v)
	case int:
		ev.Int(f.Key, v)
	case int64:
		ev.Int64(f.Key, v)
	case float64:
		ev.Float64(f.Key, v)
	case bool:
		ev.Bool(f.Key, v)
	case error:
		ev.AnErr(f.Key, v)
	default:
		ev.Interface(f.Key, v)
	}
}

func (f Field) attach(c zerolog.Context) zerolog.Context {
	if err, ok := f.Value.(error); ok {
		return c.AnErr(f.Key, err)
	}
	return c.Interface(f.Key, f.Value)
}

// plain is the value as it appears in a digest entry.
func (f Field) plain() interface{} {
	if err, ok := f.Value.(error); ok && err != nil {
		return err.Error()
	}
	return f.Value
}

func String(key, value string) Field           { return Field{key, value} }
func Int(key string, value int) Field          { return Field{key, value} }
func Int64(key string, value int64) Field      { return Field{key, value} }
func Float64(key string, value float64) Field  { return Field{key, value} }
func Bool(key string, value bool) Field        { return Field{key, value} }
func Strings(key string, value []string) Field { return Field{key, strings.Join(value, ", ")} }

// Duration logs whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return Field{key, value.Milliseconds()}
}

func Error(err error) Field { return Field{"error", err} }
