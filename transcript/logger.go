// Package transcript writes human-readable records of completed requests:
// the conversation that was sent followed by the message that came back.
package transcript

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/natexcvi/go-chatgpt/engines"
	log "github.com/sirupsen/logrus"
)

const (
	fileExt         = ".txt"
	timestampLayout = "2006-01-02_15-04-05"
	separatorWidth  = 100
)

var (
	ErrUnsupportedToolCall = errors.New("unsupported tool call type")
	ErrLogWrite            = errors.New("failed to write transcript")
)

type Logger struct {
	sink Sink
	now  func() time.Time
}

func NewLogger(sink Sink) *Logger {
	return &Logger{
		sink: sink,
		now:  time.Now,
	}
}

// WithClock replaces the clock used to name records.
func (l *Logger) WithClock(now func() time.Time) *Logger {
	l.now = now
	return l
}

// Log writes one new record. Rendering happens before anything is written,
// so a message that cannot be rendered leaves no partial record behind.
func (l *Logger) Log(prompt *engines.ChatPrompt, result *engines.ChatMessage) error {
	text, err := Render(prompt, result)
	if err != nil {
		return err
	}
	name := FileName(l.now())
	err = l.sink.Write(name, text)
	if errors.Is(err, fs.ErrExist) {
		name = strings.TrimSuffix(name, fileExt) + "-" + uuid.NewString()[:8] + fileExt
		err = l.sink.Write(name, text)
	}
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrLogWrite, name, err)
	}
	log.Debugf("transcript written to %s", name)
	return nil
}

// FileName names a record by its timestamp with microsecond resolution.
func FileName(t time.Time) string {
	return fmt.Sprintf("%s-%06d%s", t.Format(timestampLayout), t.Nanosecond()/int(time.Microsecond), fileExt)
}

func Render(prompt *engines.ChatPrompt, result *engines.ChatMessage) (string, error) {
	var sb strings.Builder
	for _, msg := range prompt.History {
		if err := renderMessage(&sb, msg); err != nil {
			return "", err
		}
	}
	if result != nil {
		if err := renderMessage(&sb, result); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func renderMessage(sb *strings.Builder, msg *engines.ChatMessage) error {
	header := strings.ToUpper(string(msg.Role))
	if msg.Name != "" {
		header += " (" + msg.Name + ")"
	}
	fmt.Fprintf(sb, "%s %s\n\n", header, strings.Repeat("-", separatorWidth))
	if msg.Text != "" {
		fmt.Fprintf(sb, "Content:\n%s\n\n", msg.Text)
	}
	if msg.FunctionCall != nil {
		fmt.Fprintf(sb, "Called function:\n%s(%s)\n\n", msg.FunctionCall.Name, msg.FunctionCall.Args)
	}
	for _, call := range msg.ToolCalls {
		if call.Type != engines.ToolTypeFunction {
			return fmt.Errorf("%w: %q", ErrUnsupportedToolCall, call.Type)
		}
		fmt.Fprintf(sb, "Called %s:\n%s(%s) id=%s\n\n", call.Type, call.Function.Name, call.Function.Args, call.ID)
	}
	return nil
}
