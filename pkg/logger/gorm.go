package logger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm query logs through the zap logger.
type GormLogger struct {
	SlowThreshold time.Duration
	level         gormlogger.LogLevel
}

func NewGormLogger(debug bool) *GormLogger {
	lvl := gormlogger.Warn
	if debug {
		lvl = gormlogger.Info
	}
	return &GormLogger{SlowThreshold: 200 * time.Millisecond, level: lvl}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *GormLogger) Info(_ context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		GetLogger().log.Infof(msg, args...)
	}
}

func (g *GormLogger) Warn(_ context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		GetLogger().log.Warnf(msg, args...)
	}
}

func (g *GormLogger) Error(_ context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		GetLogger().log.Errorf(msg, args...)
	}
}

func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		GetLogger().log.Errorw("query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case g.SlowThreshold > 0 && elapsed > g.SlowThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		GetLogger().log.Warnw("slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		GetLogger().log.Debugw("query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
