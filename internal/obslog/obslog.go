// Package obslog provides structured operational logging for the attempt
// execution core: state transitions, process spawns, and approval
// decisions. It wraps cloud.google.com/go/logging when a GCP project is
// configured and falls back to structured JSON on stdout otherwise.
//
// Grounded on internal/cloud/gcp/logging.go's LoggerInterface/CloudLogger/
// FallbackLogger split, generalized from "one logger per agent session" to
// "one logger per attempt," and on internal/observability/noop.go's
// presence-gated fallback pattern (no network probe to decide which
// implementation to use — the caller's config says so explicitly).
package obslog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	gcplogging "cloud.google.com/go/logging"

	"github.com/vibe-kanban/attemptcore/internal/security"
)

var sanitizer = security.NewLogSanitizer()

// Severity mirrors Cloud Logging's severity levels.
type Severity string

const (
	SeverityDefault  Severity = "DEFAULT"
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) toGCP() gcplogging.Severity {
	switch s {
	case SeverityDebug:
		return gcplogging.Debug
	case SeverityWarning:
		return gcplogging.Warning
	case SeverityError:
		return gcplogging.Error
	case SeverityCritical:
		return gcplogging.Critical
	case SeverityInfo:
		return gcplogging.Info
	default:
		return gcplogging.Default
	}
}

// entry is the structured JSON shape written by the stdout fallback.
type entry struct {
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	AttemptID string                 `json:"attempt_id"`
	Labels    map[string]string      `json:"labels,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger is the operational logging interface the orchestrator and other
// components log through.
type Logger interface {
	Log(severity Severity, message string, fields map[string]interface{})
	Info(message string)
	Warn(message string)
	Error(message string)
	Flush() error
	Close() error
}

// Scrub redacts a log field value before it is ever handed to a Logger.
// Callers (principally internal/attempt) are expected to pass every
// free-text field through internal/security's scrubber first; obslog
// itself does not re-scrub, to keep this package independent of the
// security package's taxonomy of secret shapes.
type Scrub func(string) string

// cloudLogger writes entries to Cloud Logging via the GCP client library.
type cloudLogger struct {
	client    *gcplogging.Client
	gcpLogger *gcplogging.Logger
	attemptID string
	labels    map[string]string
	mu        sync.Mutex
	closed    bool
}

// New returns a Logger appropriate for gcpProject: a real Cloud Logging
// client when gcpProject is non-empty, a stdout-JSON fallback otherwise.
// Callers should Close the returned Logger when the attempt finishes.
func New(ctx context.Context, gcpProject, logName, attemptID string, labels map[string]string) (Logger, error) {
	if gcpProject == "" {
		return newFallbackLogger(os.Stdout, attemptID, labels), nil
	}

	client, err := gcplogging.NewClient(ctx, gcpProject)
	if err != nil {
		return nil, fmt.Errorf("create cloud logging client: %w", err)
	}
	return &cloudLogger{
		client:    client,
		gcpLogger: client.Logger(logName),
		attemptID: attemptID,
		labels:    labels,
	}, nil
}

func (cl *cloudLogger) Log(severity Severity, message string, fields map[string]interface{}) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return
	}
	labels := sanitizer.SanitizeMap(cl.labels)
	payload := entry{
		Severity:  severity,
		Message:   sanitizer.Sanitize(message),
		Timestamp: time.Now().UTC(),
		AttemptID: cl.attemptID,
		Labels:    labels,
		Fields:    fields,
	}
	cl.gcpLogger.Log(gcplogging.Entry{
		Severity: severity.toGCP(),
		Payload:  payload,
		Labels:   labels,
	})
}

func (cl *cloudLogger) Info(message string)  { cl.Log(SeverityInfo, message, nil) }
func (cl *cloudLogger) Warn(message string)  { cl.Log(SeverityWarning, message, nil) }
func (cl *cloudLogger) Error(message string) { cl.Log(SeverityError, message, nil) }

func (cl *cloudLogger) Flush() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return nil
	}
	return cl.gcpLogger.Flush()
}

func (cl *cloudLogger) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return nil
	}
	cl.closed = true
	_ = cl.gcpLogger.Flush()
	return cl.client.Close()
}

// fallbackLogger writes structured JSON lines to an io.Writer, used when no
// GCP project is configured.
type fallbackLogger struct {
	writer    io.Writer
	attemptID string
	labels    map[string]string
	mu        sync.Mutex
}

func newFallbackLogger(w io.Writer, attemptID string, labels map[string]string) *fallbackLogger {
	return &fallbackLogger{writer: w, attemptID: attemptID, labels: labels}
}

func (fl *fallbackLogger) Log(severity Severity, message string, fields map[string]interface{}) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	data, err := json.Marshal(entry{
		Severity:  severity,
		Message:   sanitizer.Sanitize(message),
		Timestamp: time.Now().UTC(),
		AttemptID: fl.attemptID,
		Labels:    sanitizer.SanitizeMap(fl.labels),
		Fields:    fields,
	})
	if err != nil {
		fmt.Fprintf(fl.writer, `{"severity":"ERROR","message":"failed to marshal log entry: %v"}`+"\n", err)
		return
	}
	fmt.Fprintf(fl.writer, "%s\n", data)
}

func (fl *fallbackLogger) Info(message string)  { fl.Log(SeverityInfo, message, nil) }
func (fl *fallbackLogger) Warn(message string)  { fl.Log(SeverityWarning, message, nil) }
func (fl *fallbackLogger) Error(message string) { fl.Log(SeverityError, message, nil) }
func (fl *fallbackLogger) Flush() error         { return nil }
func (fl *fallbackLogger) Close() error         { return nil }

var (
	_ Logger = (*cloudLogger)(nil)
	_ Logger = (*fallbackLogger)(nil)
)
