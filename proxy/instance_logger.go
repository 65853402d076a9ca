package proxy

import (
	"os"

	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
)

// InstanceLogger tags every line with the proxy instance it comes from.
// Without a log file it writes through the logrus standard logger.
type InstanceLogger struct {
	*log.Entry

	InstanceID   string
	InstanceName string
	Addr         string

	file *os.File
}

func NewInstanceLogger(addr, name string) *InstanceLogger {
	return NewInstanceLoggerWithFile(addr, name, "")
}

func NewInstanceLoggerWithFile(addr, name, logFilePath string) *InstanceLogger {
	id := uuid.NewV4().String()[:8]
	if name == "" {
		name = "proxy-" + id
	}
	l := &InstanceLogger{
		InstanceID:   id,
		InstanceName: name,
		Addr:         addr,
	}

	logger := log.StandardLogger()
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Warnf("open log file %v: %v, logging to stdout", logFilePath, err)
		} else {
			logger = log.New()
			logger.SetOutput(f)
			logger.SetLevel(log.GetLevel())
			logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			l.file = f
		}
	}

	l.Entry = logger.WithFields(log.Fields{
		"instance_id":   id,
		"instance_name": name,
		"proxy_addr":    addr,
	})
	return l
}

func (l *InstanceLogger) GetEntry() *log.Entry {
	return l.Entry
}

func (l *InstanceLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
