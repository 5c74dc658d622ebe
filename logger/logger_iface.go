package logger

//go:generate mockery --name ILogger --output ./mocks
type ILogger interface {
	SetLabel(key, value string)
	SetLabels(labels map[string]string)
	Debug(v ...interface{})
	Info(v ...interface{})
	Warning(v ...interface{})
	Error(v ...interface{})
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warningf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Sync() error
}
