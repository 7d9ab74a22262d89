// Package logging provides structured logging for andromap using zap.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with andromap-specific field helpers.
type Logger struct {
	*zap.Logger
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// WithCategory returns a logger with the category field preset, grouping
// log lines by loader stage: "elfimage", "segload", "reloc", "hostabi".
func (l *Logger) WithCategory(category string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("cat", category))}
}

// Segment logs a mapped PT_LOAD segment.
func (l *Logger) Segment(vaddr, memsz uint64, flags string) {
	l.Debug("segment mapped",
		Addr(vaddr),
		Size(memsz),
		zap.String("flags", flags),
	)
}

// Relocation logs a single applied relocation.
func (l *Logger) Relocation(kind string, offset uint64, symbol string) {
	l.Debug("relocation applied",
		zap.String("kind", kind),
		Addr(offset),
		zap.String("sym", symbol),
	)
}

// SymbolResolved logs a successful host symbol resolution.
func (l *Logger) SymbolResolved(name string, addr uint64) {
	l.Debug("host symbol resolved", Fn(name), Addr(addr))
}

// SymbolMissing logs a fall-through to the undefined-symbol trampoline.
func (l *Logger) SymbolMissing(name string) {
	l.Warn("host symbol unresolved, binding to undefined_symbol trampoline", Fn(name))
}

// Hex formats a uint64 as a hex string for logging.
func Hex(addr uint64) string {
	return "0x" + hexString(addr)
}

func hexString(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 16)
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Addr creates an address field.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Size creates a size field.
func Size(size uint64) zap.Field {
	return zap.Uint64("size", size)
}

// Fn creates a function-name field.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}
