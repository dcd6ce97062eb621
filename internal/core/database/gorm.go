// Package database 打开 gorm 连接（mysql / postgres），供 gorm 会话 token 存储使用。
package database

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"myduka-web/internal/core/logger"
)

var ErrUnsupportedDriver = errors.New("database: unsupported driver")

type Opts struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string
	Log                *zap.Logger
}

func NewGorm(o Opts) (*gorm.DB, error) {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	var dial gorm.Dialector
	switch o.Driver {
	case "postgres":
		dial = postgres.Open(o.DSN)
	case "mysql":
		dsn := normalizeMySQLDSN(o.DSN, o.Username, o.Password)
		o.Log.Info("db dsn", zap.String("driver", "mysql"), zap.String("dsn", maskDSN(dsn)))
		dial = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, o.Driver)
	}

	std, err := logger.ToStdLogger(o.Log.Named("gorm"), zapcore.InfoLevel)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger: gormlogger.New(std, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel(o.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if o.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	}
	if o.ConnMaxLifetimeMin > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	}
	return db.Session(&gorm.Session{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	}), nil
}

func gormLevel(s string) gormlogger.LogLevel {
	switch s {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	}
	return gormlogger.Warn
}

// maskDSN user:pass@... → user:****@...
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at <= 0 {
		return dsn
	}
	if colon := strings.Index(dsn[:at], ":"); colon > 0 {
		return dsn[:colon+1] + "****" + dsn[at:]
	}
	return dsn
}

// normalizeMySQLDSN 接受 go-sql-driver DSN 原样返回；mysql:// 或 jdbc:mysql:// URL 转成 driver 语法
func normalizeMySQLDSN(input, userOverride, passOverride string) string {
	in := strings.TrimPrefix(strings.TrimSpace(input), "jdbc:")
	if !strings.HasPrefix(in, "mysql://") {
		return strings.TrimSpace(input)
	}
	u, err := url.Parse(in)
	if err != nil {
		return in
	}

	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	q := u.Query()
	if v := q.Get("user"); v != "" {
		user = v
	}
	if v := q.Get("password"); v != "" {
		pass = v
	}
	if userOverride != "" {
		user = userOverride
	}
	if passOverride != "" {
		pass = passOverride
	}

	// JDBC 参数换成 go-sql-driver 的写法
	if v := q.Get("characterEncoding"); v != "" && q.Get("charset") == "" {
		q.Set("charset", v)
	}
	switch strings.ToLower(q.Get("useSSL")) {
	case "":
	case "true", "1":
		q.Set("tls", "true")
	case "skip-verify", "preferred":
		q.Set("tls", strings.ToLower(q.Get("useSSL")))
	default:
		q.Set("tls", "false")
	}
	if tz := q.Get("serverTimezone"); tz != "" {
		q.Set("loc", tz)
	}
	for _, k := range []string{"user", "password", "characterEncoding", "useUnicode", "zeroDateTimeBehavior", "useSSL", "serverTimezone"} {
		q.Del(k)
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "true")
	}
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}

	cred := user
	if pass != "" {
		cred += ":" + pass
	}
	if cred != "" {
		cred += "@"
	}
	dsn := fmt.Sprintf("%stcp(%s)/%s", cred, u.Host, strings.TrimPrefix(u.Path, "/"))
	if enc := q.Encode(); enc != "" {
		dsn += "?" + enc
	}
	return dsn
}
