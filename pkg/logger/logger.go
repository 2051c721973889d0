// Package logger provides a plain stdlib logger for surfaces that run
// before the structured logger exists, such as CLI startup errors.
package logger

import (
	"fmt"
	"log"
	"os"
)

// New returns a stderr logger with a component prefix and no file/line
// noise.
func New(component string) *log.Logger {
	prefix := fmt.Sprintf("[%s] ", component)
	return log.New(os.Stderr, prefix, log.LstdFlags)
}
