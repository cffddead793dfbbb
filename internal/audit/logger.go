package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger appends audit entries to day-partitioned JSONL files. Writes are
// fire-and-forget from the caller's perspective; failures are reported to
// the structured log, never back to the authorization path.
type Logger struct {
	mu     sync.Mutex
	dir    string
	store  *Store
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewLogger creates a logger writing under dir, creating it if needed.
func NewLogger(dir string, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit dir: %w", err)
	}
	return &Logger{
		dir:    dir,
		logger: logger.With("component", "audit"),
		now:    time.Now,
	}, nil
}

// WithStore attaches a query store; every entry is mirrored into it.
func (l *Logger) WithStore(store *Store) *Logger {
	l.store = store
	return l
}

// LogAction writes one action entry.
func (l *Logger) LogAction(action, agent, trigger string, params map[string]any, result ResultSummary, riskLevel string, userConfirmed bool) {
	rec := ActionRecord{
		ID:            uuid.NewString(),
		Timestamp:     l.now(),
		Kind:          KindAction,
		Action:        action,
		Agent:         agent,
		Trigger:       trigger,
		Params:        params,
		Result:        result,
		RiskLevel:     riskLevel,
		UserConfirmed: userConfirmed,
	}
	l.append(rec)
	if l.store != nil {
		if err := l.store.InsertAction(rec); err != nil {
			l.logger.Warn("audit store insert failed", "error", err)
		}
	}
}

// LogSecurityEvent writes one security event entry.
func (l *Logger) LogSecurityEvent(eventType, description, severity string, details map[string]any) {
	ev := SecurityEvent{
		ID:          uuid.NewString(),
		Timestamp:   l.now(),
		Kind:        KindSecurityEvent,
		EventType:   eventType,
		Description: description,
		Severity:    severity,
		Details:     details,
	}
	l.append(ev)
	if l.store != nil {
		if err := l.store.InsertEvent(ev); err != nil {
			l.logger.Warn("audit store insert failed", "error", err)
		}
	}
}

// append serializes the entry and appends it to the current day file.
func (l *Logger) append(entry any) {
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("audit marshal failed", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, fmt.Sprintf("audit_%s.jsonl", l.now().Format("20060102")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Error("audit open failed", "path", path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.logger.Error("audit write failed", "path", path, "error", err)
	}
}

// CurrentFile returns the path entries are currently appended to.
func (l *Logger) CurrentFile() string {
	return filepath.Join(l.dir, fmt.Sprintf("audit_%s.jsonl", l.now().Format("20060102")))
}

// SetClock overrides the time source, for tests.
func (l *Logger) SetClock(now func() time.Time) {
	l.now = now
}
