package logger

// AsynqLogger 适配 asynq.Logger 接口，让 Worker 的日志也走 Zap
type AsynqLogger struct{}

func NewAsynqLogger() *AsynqLogger {
	return &AsynqLogger{}
}

func (l *AsynqLogger) Debug(args ...interface{}) {
	Log.Sugar().Debug(args...)
}

func (l *AsynqLogger) Info(args ...interface{}) {
	Log.Sugar().Info(args...)
}

func (l *AsynqLogger) Warn(args ...interface{}) {
	Log.Sugar().Warn(args...)
}

func (l *AsynqLogger) Error(args ...interface{}) {
	Log.Sugar().Error(args...)
}

func (l *AsynqLogger) Fatal(args ...interface{}) {
	Log.Sugar().Fatal(args...)
}
