package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the active audit file inside the log directory.
const FileName = "audit.jsonl"

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Actor     string    `json:"actor"`
	VehicleID string    `json:"vehicleId"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	LatencyMs int64     `json:"latencyMs"`
}

type actorKey struct{}

// WithActor returns a context naming who requested the actions logged under it.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by WithActor, or "unknown".
func ActorFrom(ctx context.Context) string {
	if ctx != nil {
		if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
			return actor
		}
	}
	return "unknown"
}

// Logger appends audit entries to a size-rotated JSONL file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      *lumberjack.Logger
}

// NewLogger creates the log directory if needed and opens the audit file.
// maxSizeMB and maxBackups bound rotation; zero keeps lumberjack's defaults.
func NewLogger(logDir string, maxSizeMB, maxBackups int) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	filePath := filepath.Join(logDir, FileName)
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	_ = f.Close()

	return &Logger{
		filePath: filePath,
		out: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		},
	}, nil
}

// LogAction appends one record. Write failures go to stderr; auditing never fails a command.
func (l *Logger) LogAction(ctx context.Context, action, vehicleID, result string, latency time.Duration) {
	l.writeEntry(Entry{
		Timestamp: time.Now().UTC(),
		Actor:     ActorFrom(ctx),
		VehicleID: vehicleID,
		Action:    action,
		Outcome:   result,
		LatencyMs: latency.Milliseconds(),
	})
}

func (l *Logger) writeEntry(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		fmt.Fprintf(os.Stderr, "Audit log closed, dropping entry for %s\n", entry.Action)
		return
	}
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// Rotate starts a new audit file, keeping the old one as a timestamped backup.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return fmt.Errorf("audit log closed")
	}
	return l.out.Rotate()
}

// Close closes the audit file. Later entries are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return nil
	}
	err := l.out.Close()
	l.out = nil
	return err
}

// GetFilePath returns the path of the active audit file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}
