package core

// Logger is any leveled logger. Implementations may ship logs to an external
// error tracker; Enable toggles that shipping at runtime.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
