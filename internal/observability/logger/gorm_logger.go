package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures the GORM zap logger.
type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// LogNotFound logs ErrRecordNotFound as a query error. Stores treat a
	// missing row as an empty result, so it is off by default.
	LogNotFound bool
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:         gormlogger.Warn,
		SlowThreshold: 200 * time.Millisecond,
	}
}

// GormLogger routes GORM statements to zap with the request fields of ctx.
// Bound parameters are never logged.
type GormLogger struct {
	base *zap.Logger
	cfg  GormLoggerConfig
}

// NewGormLogger builds a GormLogger on base. A nil base uses the global logger.
func NewGormLogger(base *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	if base == nil {
		base = zap.L()
	}
	return &GormLogger{base: base.Named("gorm"), cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Info {
		l.logger(ctx).Info(msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Warn {
		l.logger(ctx).Warn(msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Error {
		l.logger(ctx).Error(msg, zap.Any("data", data))
	}
}

// Trace logs failed statements at error, slow ones at warn and the rest at
// debug when the level is Info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	if err != nil && (l.cfg.LogNotFound || !errors.Is(err, gormlogger.ErrRecordNotFound)) {
		if l.cfg.Level >= gormlogger.Error {
			l.logger(ctx).Error("gorm.query", append(queryFields(fc, elapsed), zap.Error(err))...)
		}
		return
	}
	if l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold {
		if l.cfg.Level >= gormlogger.Warn {
			fields := append(queryFields(fc, elapsed), zap.Duration("slow_threshold", l.cfg.SlowThreshold))
			l.logger(ctx).Warn("gorm.query.slow", fields...)
		}
		return
	}
	if l.cfg.Level >= gormlogger.Info {
		l.logger(ctx).Debug("gorm.query", queryFields(fc, elapsed)...)
	}
}

// ParamsFilter drops bound values so submitted readings and emails stay out of the logs.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) logger(ctx context.Context) *zap.Logger {
	return WithContext(ctx, l.base)
}

func queryFields(fc func() (string, int64), elapsed time.Duration) []zap.Field {
	sql, rows := fc()
	op, table := parseStatement(sql)
	fields := []zap.Field{
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", op),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if table != "" {
		fields = append(fields, zap.String("table", table))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	return fields
}

func operationFromSQL(sql string) string {
	op, _ := parseStatement(sql)
	return op
}

// parseStatement returns the statement verb and the first table it touches.
// Parenthesized parts, such as a WITH body or a subquery, are skipped.
func parseStatement(sql string) (op, table string) {
	op = "UNKNOWN"
	tokens := strings.Fields(sql)
	depth := 0
	for i, raw := range tokens {
		leading := len(raw) - len(strings.TrimLeft(raw, "("))
		depth += leading
		if depth == 0 {
			switch token := strings.ToUpper(strings.Trim(raw, "();")); token {
			case "SELECT", "INSERT", "UPDATE", "DELETE", "MERGE":
				if op == "UNKNOWN" {
					op = token
					if token == "UPDATE" && i+1 < len(tokens) {
						table = cleanIdent(tokens[i+1])
					}
				}
			case "FROM", "INTO":
				if op != "UNKNOWN" && table == "" && i+1 < len(tokens) {
					table = cleanIdent(tokens[i+1])
				}
			}
		}
		depth += strings.Count(raw, "(") - leading - strings.Count(raw, ")")
		if depth < 0 {
			depth = 0
		}
		if op != "UNKNOWN" && table != "" {
			break
		}
	}
	return op, table
}

func cleanIdent(raw string) string {
	return strings.Trim(raw, "\"`();")
}

var _ gormlogger.Interface = (*GormLogger)(nil)
