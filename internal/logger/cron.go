package logger

import "log/slog"

// CronLogger はrobfig/cronのLoggerインターフェースをslogで実装する。
// cronのキー・値ペアはそのままslogの属性として渡す。
type CronLogger struct {
	l *slog.Logger
}

// NewCronLogger はCronLoggerを生成する。lがnilの場合はslog.Default()を使用する。
func NewCronLogger(l *slog.Logger) *CronLogger {
	if l == nil {
		l = slog.Default()
	}
	return &CronLogger{l: l.With(slog.String("component", "cron"))}
}

// Info はスケジューラの通常イベントをDEBUGレベルで出力する。
// cronはティックごとにInfoを呼ぶため、INFOで出すとログが埋もれる。
func (c *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

// Error はジョブのパニックなどをERRORレベルで出力する。
func (c *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := keysAndValues
	if err != nil {
		args = append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)
	}
	c.l.Error(msg, args...)
}
