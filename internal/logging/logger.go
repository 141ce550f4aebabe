package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"volguard/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps logrus logger with component awareness
type Logger struct {
	*logrus.Logger
	component string
}

// NewLogger creates a new logger with the given configuration
func NewLogger(cfg config.LoggingConfig) *Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "file":
		output = createFileWriter(cfg)
	case "both":
		output = io.MultiWriter(os.Stdout, createFileWriter(cfg))
	default:
		output = os.Stdout
	}

	logger.SetOutput(output)

	return &Logger{
		Logger: logger,
	}
}

// createFileWriter creates a rotating file writer
func createFileWriter(cfg config.LoggingConfig) io.Writer {
	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		fmt.Printf("Warning: Failed to create log directory: %v\n", err)
		return os.Stdout
	}

	logFile := filepath.Join(cfg.Directory, "volguard.log")

	return &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    cfg.MaxSize, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	}
}

// Component returns a logger scoped to a specific component
func (l *Logger) Component(component string) *Logger {
	return &Logger{
		Logger:    l.Logger,
		component: component,
	}
}

// entry returns a logrus entry carrying the component field
func (l *Logger) entry() *logrus.Entry {
	if l.component != "" {
		return l.Logger.WithField("component", l.component)
	}
	return logrus.NewEntry(l.Logger)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry().Debugf(format, args...)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry().Infof(format, args...)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry().Warnf(format, args...)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry().Errorf(format, args...)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.entry().Fatalf(format, args...)
}

// WithFields adds multiple fields to the log entry
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.entry().WithFields(fields)
}

// WithError adds an error field to the log entry
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.entry().WithError(err)
}

// Risk engine specific logging methods

// LogEstimate logs a published volatility estimate
func (l *Logger) LogEstimate(symbol string, blended float64, sampleSize int, reliable bool) {
	l.entry().WithFields(logrus.Fields{
		"event":       "volatility_estimate",
		"symbol":      symbol,
		"blended":     blended,
		"sample_size": sampleSize,
		"reliable":    reliable,
	}).Debug("Volatility estimate published")
}

// LogRegimeTransition logs a regime change for an instrument
func (l *Logger) LogRegimeTransition(symbol, from, to string, triggerVol float64, anticipated bool) {
	l.entry().WithFields(logrus.Fields{
		"event":       "regime_transition",
		"symbol":      symbol,
		"from_regime": from,
		"to_regime":   to,
		"trigger_vol": triggerVol,
		"anticipated": anticipated,
	}).Info("Regime transition")
}

// LogAssessment logs a composite risk assessment
func (l *Logger) LogAssessment(symbol string, score float64, level string, allowed bool) {
	l.entry().WithFields(logrus.Fields{
		"event":           "risk_assessment",
		"symbol":          symbol,
		"overall_score":   score,
		"risk_level":      level,
		"trading_allowed": allowed,
	}).Debug("Trade scored")
}

// LogSizing logs a sizing recommendation
func (l *Logger) LogSizing(symbol, method string, rawSize, clampedSize float64, rejected bool) {
	entry := l.entry().WithFields(logrus.Fields{
		"event":        "sizing_recommendation",
		"symbol":       symbol,
		"method":       method,
		"raw_size":     rawSize,
		"clamped_size": clampedSize,
		"rejected":     rejected,
	})
	if rejected {
		entry.Warn("Trade sizing rejected")
		return
	}
	entry.Debug("Trade sized")
}
