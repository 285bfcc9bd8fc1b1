// Package apps holds pieces shared by the API and admin entry points.
package apps

// ArgumentError reports bad command-line input. The admin CLI shows its
// usage and still prints the message.
type ArgumentError struct {
	msg string
}

func NewArgumentError(msg string) *ArgumentError {
	return &ArgumentError{msg}
}

func (err *ArgumentError) Error() string {
	return err.msg
}
