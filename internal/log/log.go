// Package log provides centralized logging functionality using zap logger.
package log

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	mu         sync.Mutex
	log        *zap.SugaredLogger
	baseLogger *zap.Logger
)

// New builds a zap logger: development (console, debug level) when debug is
// set, production (JSON, info level) otherwise.
func New(debug bool, opts ...zap.Option) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment(opts...)
	}
	return zap.NewProduction(opts...)
}

// Init initializes the package-level logger
func Init(debug bool) error {
	zapLogger, err := New(debug, zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	baseLogger = zapLogger
	log = zapLogger.Sugar()
	return nil
}

// fallback installs a production logger if Init was never called.
func fallback() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		log = baseLogger.Sugar()
	}
	return log
}

// GetZapLogger returns the base zap logger
func GetZapLogger() *zap.Logger {
	fallback()
	return baseLogger
}

// GetSugaredLogger returns the sugared logger instance. Library packages
// take it by injection and drop the extra caller frame added for the
// package-level helpers.
func GetSugaredLogger() *zap.SugaredLogger {
	return fallback().WithOptions(zap.AddCallerSkip(-1))
}

// Sync flushes any buffered log entries
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
}

// Package-level convenience functions
func Debug(args ...any) {
	fallback().Debug(args...)
}

func Debugf(template string, args ...any) {
	fallback().Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...any) {
	fallback().Debugw(msg, keysAndValues...)
}

func Info(args ...any) {
	fallback().Info(args...)
}

func Infof(template string, args ...any) {
	fallback().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...any) {
	fallback().Infow(msg, keysAndValues...)
}

func Warn(args ...any) {
	fallback().Warn(args...)
}

func Warnf(template string, args ...any) {
	fallback().Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...any) {
	fallback().Warnw(msg, keysAndValues...)
}

func Error(args ...any) {
	fallback().Error(args...)
}

func Errorf(template string, args ...any) {
	fallback().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...any) {
	fallback().Errorw(msg, keysAndValues...)
}

func Fatal(args ...any) {
	fallback().Fatal(args...)
	os.Exit(1)
}

func Fatalf(template string, args ...any) {
	fallback().Fatalf(template, args...)
	os.Exit(1)
}
