package logger

type Logger interface {
	Log(msg string)
	Logf(format string, v ...any)

	Warn(msg string)
	Warnf(format string, v ...any)

	Debug(msg string)
	Debugf(format string, v ...any)

	Error(msg string)
	Errorf(format string, v ...any)

	Fatal(msg string)
	Fatalf(format string, v ...any)
}
