package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// New builds the process logger. format is "json" or "text"; unknown levels fall back to info.
func New(level, format string) *logrus.Logger {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	return log
}

// GinMiddleware logs one line per handled request.
func GinMiddleware(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if userID, ok := c.Get("userID"); ok {
			entry = entry.WithField("user_id", userID)
		}
		if len(c.Errors) > 0 {
			entry.Error(c.Errors.String())
			return
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

// gormAdapter routes gorm's SQL logging through logrus.
type gormAdapter struct {
	log           logrus.FieldLogger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger returns a gorm logger that reports warnings, errors and slow queries.
func NewGormLogger(log logrus.FieldLogger, slowThreshold time.Duration) gormlogger.Interface {
	return &gormAdapter{log: log, level: gormlogger.Warn, slowThreshold: slowThreshold}
}

func (g *gormAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *gormAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.log.Infof(msg, args...)
	}
}

func (g *gormAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.log.Warnf(msg, args...)
	}
}

func (g *gormAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.log.Errorf(msg, args...)
	}
}

func (g *gormAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	// not-found lookups and unique violations are handled by the callers
	case err != nil && g.level >= gormlogger.Error &&
		!errors.Is(err, gormlogger.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey):
		sql, rows := fc()
		g.log.WithFields(logrus.Fields{"elapsed": elapsed.String(), "rows": rows, "sql": sql}).WithError(err).Error("query failed")
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.log.WithFields(logrus.Fields{"elapsed": elapsed.String(), "rows": rows, "sql": sql}).Warn("slow query")
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.log.WithFields(logrus.Fields{"elapsed": elapsed.String(), "rows": rows, "sql": sql}).Debug("query")
	}
}
