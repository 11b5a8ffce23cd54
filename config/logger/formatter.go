// Package logger configures logrus and implements a formatter that prefixes
// log messages with the storage map name.
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// MapField is the log field holding the storage map name
const MapField = "map"

// MapFormatter is a logrus formatter that moves the 'map' field to a log
// prefix for nicer formatted text output.
type MapFormatter struct {
	Parent logrus.Formatter
}

// Format implements logrus.Formatter
func (f *MapFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if name, ok := entry.Data[MapField].(string); ok {
		entry.Message = fmt.Sprintf("[%-15s] %s", name, entry.Message)
	}
	return f.Parent.Format(entry)
}
