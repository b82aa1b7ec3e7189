package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
)

var (
	InfoLogger  = logrus.New()
	ErrorLogger = logrus.New()
)

// InitLogger mengatur output dan level logger global.
func InitLogger(level string, jsonOutput bool) {
	routeByLevel(InfoLogger, os.Stdout, os.Stderr)
	ErrorLogger.SetOutput(os.Stderr)

	var formatter logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if jsonOutput {
		formatter = &logrus.JSONFormatter{}
	}
	InfoLogger.SetFormatter(formatter)
	ErrorLogger.SetFormatter(formatter)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	InfoLogger.SetLevel(lvl)
	// ErrorLogger hanya untuk warn ke atas
	if lvl < logrus.WarnLevel {
		ErrorLogger.SetLevel(lvl)
	} else {
		ErrorLogger.SetLevel(logrus.WarnLevel)
	}
}

// routeByLevel mengirim warn ke atas ke errOut dan sisanya ke out.
func routeByLevel(l *logrus.Logger, out, errOut io.Writer) {
	l.SetOutput(io.Discard)
	l.ReplaceHooks(make(logrus.LevelHooks))
	l.AddHook(&writer.Hook{
		Writer:    errOut,
		LogLevels: []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel},
	})
	l.AddHook(&writer.Hook{
		Writer:    out,
		LogLevels: []logrus.Level{logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel},
	})
}

// Component returns an entry tagged with the component name. Warn and error
// entries land on stderr, the rest on stdout.
func Component(name string) *logrus.Entry {
	return InfoLogger.WithField("component", name)
}
