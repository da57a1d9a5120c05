package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

// Logger writes one JSON object per line: timestamp, level, service,
// hostname, request_id, action, message, optional error and flat fields.
type Logger struct {
	service   string
	hostname  string
	requestID string

	mu *sync.Mutex
	w  io.Writer
}

func New(service string) *Logger { return NewWithWriter(service, os.Stdout) }

func NewWithWriter(service string, w io.Writer) *Logger {
	return &Logger{service: service, hostname: hostname(), mu: &sync.Mutex{}, w: w}
}

// Nop discards everything; used where no logger was injected.
func Nop() *Logger { return NewWithWriter("", io.Discard) }

// With returns a logger stamping every entry with requestID.
func (l *Logger) With(requestID string) *Logger {
	cp := *l
	cp.requestID = requestID
	return &cp
}

// Named returns a logger for a sub-component sharing the same output.
func (l *Logger) Named(service string) *Logger {
	cp := *l
	cp.service = service
	return &cp
}

func (l *Logger) log(level, action, msg string, fields map[string]any, err error) {
	if l == nil {
		return
	}
	entry := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"level":      level,
		"service":    l.service,
		"action":     action,
		"message":    msg,
		"hostname":   l.hostname,
		"request_id": l.requestID,
	}
	for k, v := range fields {
		entry[k] = v
	}
	if err != nil {
		e := map[string]any{"msg": err.Error()}
		if level == "ERROR" {
			e["stack"] = string(debug.Stack())
		}
		entry["error"] = e
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if encErr := json.NewEncoder(l.w).Encode(entry); encErr != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", encErr)
	}
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.log("INFO", action, action, fields, nil)
}
func (l *Logger) Debug(action string, fields map[string]any) {
	l.log("DEBUG", action, action, fields, nil)
}
func (l *Logger) Warn(action string, err error, fields map[string]any) {
	l.log("WARN", action, action, fields, err)
}
func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log("ERROR", action, action, fields, err)
}

func hostname() string {
	h, err := os.Hostname()
	if err == nil && h != "" {
		return h
	}
	addrs, _ := net.InterfaceAddrs()
	if len(addrs) > 0 {
		return addrs[0].String()
	}
	return "unknown-host"
}
