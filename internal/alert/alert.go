package alert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/watchxrpl/watchxrpl/internal/logger"
	"github.com/watchxrpl/watchxrpl/internal/xrpl"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityForState maps the state being entered onto an alert severity.
func SeverityForState(state xrpl.State) Severity {
	switch state {
	case xrpl.StateDisconnected, xrpl.StateSyncing:
		return SeverityCritical
	case xrpl.StateTracking:
		return SeverityWarning
	case xrpl.StateProposing:
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// Notifier delivers alerts for significant validator events.
type Notifier interface {
	Notify(severity Severity, title, message string)
}

// StateChange sends the standard state-change alert through a notifier.
func StateChange(n Notifier, oldState, newState xrpl.State, duration time.Duration, ledgerSeq int64) {
	title := fmt.Sprintf("State Change: %s -> %s", oldState, newState)
	message := fmt.Sprintf(
		"Validator state changed from '%s' to '%s'\nDuration in %s: %.1fs (%.1fm)\nLedger: %d",
		oldState, newState, oldState, duration.Seconds(), duration.Minutes(), ledgerSeq,
	)
	n.Notify(SeverityForState(newState), title, message)
}

// FileAlerter appends alerts to a log file and echoes them to the console.
type FileAlerter struct {
	file string
	mu   sync.Mutex
}

var _ Notifier = (*FileAlerter)(nil)

func NewFileAlerter(file string) (*FileAlerter, error) {
	if dir := filepath.Dir(file); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating alerts directory: %w", err)
		}
	}
	return &FileAlerter{file: file}, nil
}

// File returns the path alerts are appended to.
func (a *FileAlerter) File() string {
	return a.file
}

func (a *FileAlerter) Notify(severity Severity, title, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	entry := fmt.Sprintf("[%s] [%s] %s\n%s\n", timestamp, severity, title, message)

	a.mu.Lock()
	if err := a.append(entry); err != nil {
		logger.Error("Failed to write alert to file: %v", err)
	}
	a.mu.Unlock()

	a.print(severity, timestamp, title, message)
}

func (a *FileAlerter) append(entry string) error {
	f, err := os.OpenFile(a.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(entry)
	return err
}

var severityColors = map[Severity]string{
	SeverityInfo:     "\033[94m",
	SeverityWarning:  "\033[93m",
	SeverityCritical: "\033[91m",
}

const colorReset = "\033[0m"

func (a *FileAlerter) print(severity Severity, timestamp, title, message string) {
	color := severityColors[severity]
	rule := strings.Repeat("=", 60)

	fmt.Printf("\n%s%s\n", color, rule)
	fmt.Printf("ALERT: %s\n", title)
	fmt.Printf("%s%s\n", rule, colorReset)
	fmt.Printf("Level: %s\n", severity)
	fmt.Printf("Time: %s\n", timestamp)
	fmt.Printf("%s\n", message)
	fmt.Printf("%s%s%s\n\n", color, rule, colorReset)
}

// Recent returns up to count recent non-empty lines from the alerts file.
func (a *FileAlerter) Recent(count int) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading alerts file: %w", err)
	}

	var alerts []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			alerts = append(alerts, line)
		}
	}
	if len(alerts) > count {
		alerts = alerts[len(alerts)-count:]
	}
	return alerts, nil
}
