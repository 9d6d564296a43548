// Package gelf ships std log lines to a Graylog input as GELF over UDP.
package gelf

import (
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"
)

// Syslog severities used as GELF levels.
const (
	LevelError   = 3
	LevelWarning = 4
	LevelInfo    = 6
)

// Message is one GELF 1.1 record.
type Message struct {
	Version      string  `json:"version"`
	Host         string  `json:"host"`
	ShortMessage string  `json:"short_message"`
	Timestamp    float64 `json:"timestamp"`
	Level        int     `json:"level"`
	Service      string  `json:"_service"`
}

// Writer is an io.Writer for log.SetOutput. Every Write is one message.
type Writer struct {
	conn     net.Conn
	hostname string
	service  string
}

// New dials addr (e.g. "172.17.0.1:12201"). Records carry service in
// the _service field.
func New(addr, service string) (*Writer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = service + "-server"
	}
	return &Writer{conn: conn, hostname: hostname, service: service}, nil
}

// Write never fails the log call; a lost datagram is a lost log line.
func (w *Writer) Write(p []byte) (int, error) {
	short := StripPrefix(strings.TrimRight(string(p), "\n"))
	payload, err := json.Marshal(Message{
		Version:      "1.1",
		Host:         w.hostname,
		ShortMessage: short,
		Timestamp:    float64(time.Now().UnixNano()) / 1e9,
		Level:        Level(short),
		Service:      w.service,
	})
	if err != nil {
		return len(p), nil
	}
	w.conn.Write(payload)
	return len(p), nil
}

func (w *Writer) Close() error {
	return w.conn.Close()
}

// StripPrefix drops the std log "2006/01/02 15:04:05 " prefix.
func StripPrefix(line string) string {
	if len(line) > 20 && line[4] == '/' && line[7] == '/' && line[10] == ' ' && line[13] == ':' {
		return line[20:]
	}
	return line
}

// Level maps a log line to a GELF level by its conventional markers.
func Level(line string) int {
	switch {
	case strings.Contains(line, "PANIC:"), strings.Contains(line, "Fatal"), strings.HasPrefix(line, "internal error:"):
		return LevelError
	case strings.HasPrefix(line, "Warning:"):
		return LevelWarning
	}
	return LevelInfo
}
