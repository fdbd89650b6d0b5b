package log

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Field names that identify a group-sync unit.
const (
	FieldOrg   = "org"
	FieldGroup = "group"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// PrettyFormatter formats log entries in a human-readable way for terminal output.
// Entries carrying org and group fields are prefixed with "[org:group]".
type PrettyFormatter struct{}

// Format renders a logrus entry as a pretty, human-readable line.
func (f *PrettyFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("15:04:05")

	var levelIcon string
	var levelColor string
	switch entry.Level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		levelIcon = "✗"
		levelColor = colorRed
	case logrus.WarnLevel:
		levelIcon = "⚠"
		levelColor = colorYellow
	case logrus.InfoLevel:
		levelIcon = "•"
		levelColor = colorGreen
	case logrus.DebugLevel, logrus.TraceLevel:
		levelIcon = "·"
		levelColor = colorGray
	}

	prefix := unitPrefix(entry.Data)
	if prefix != "" {
		prefix = colorBlue + prefix + colorReset + " "
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == FieldOrg || k == FieldGroup {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fieldParts []string
	for _, k := range keys {
		fieldParts = append(fieldParts, fmt.Sprintf("%s%s%s=%v", colorCyan, k, colorReset, entry.Data[k]))
	}

	var fieldsStr string
	if len(fieldParts) > 0 {
		fieldsStr = " " + strings.Join(fieldParts, " ")
	}

	line := fmt.Sprintf("%s%s%s %s%s%s %s%s%s\n",
		colorGray, timestamp, colorReset,
		levelColor, levelIcon, colorReset,
		prefix, entry.Message,
		fieldsStr,
	)
	return []byte(line), nil
}

func unitPrefix(data logrus.Fields) string {
	org, hasOrg := data[FieldOrg]
	group, hasGroup := data[FieldGroup]
	switch {
	case hasOrg && hasGroup:
		return fmt.Sprintf("[%v:%v]", org, group)
	case hasOrg:
		return fmt.Sprintf("[%v]", org)
	default:
		return ""
	}
}

// Configure sets output, format, and level on an existing logger.
func Configure(logger *logrus.Logger, out io.Writer, level string, format string) {
	if out != nil {
		logger.SetOutput(out)
	}
	setFormatter(logger, format)
	setLevel(logger, level)
}

// UnitFields returns the fields that tag log lines of one group-sync unit.
func UnitFields(orgSlug string, groupName string) logrus.Fields {
	return logrus.Fields{FieldOrg: orgSlug, FieldGroup: groupName}
}

func setFormatter(logger *logrus.Logger, format string) {
	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "pretty":
		logger.SetFormatter(&PrettyFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	}
}

func setLevel(logger *logrus.Logger, level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}
