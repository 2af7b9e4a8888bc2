package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// Source is a core.Source for one line typed at a terminal. Responses are
// written to the shared output, decorated by kind.
type Source struct {
	text       string
	attachment *core.Attachment
	out        *Writer
}

// Text implements core.Source.
func (s *Source) Text() string { return s.text }

// Attachment implements core.Source.
func (s *Source) Attachment() *core.Attachment { return s.attachment }

// Respond implements core.Source. Private responses are marked, since a
// terminal has only one reader.
func (s *Source) Respond(_ context.Context, text string, kind core.ResponseKind, private bool) (string, error) {
	line := kind.Decorate(text)
	if private {
		line = "(private) " + line
	}
	if err := s.out.WriteLine(line); err != nil {
		return "", fmt.Errorf("write response: %w", err)
	}
	return line, nil
}

// Writer serializes response lines from concurrent invocations.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteLine writes line followed by a newline.
func (w *Writer) WriteLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.w, line+"\n")
	return err
}

// NewSource returns a Source for line that responds to out.
func (w *Writer) NewSource(line string) *Source {
	return &Source{text: line, out: w}
}

// NewSourceWithAttachment returns a Source for line carrying a.
func (w *Writer) NewSourceWithAttachment(line string, a *core.Attachment) *Source {
	return &Source{text: line, attachment: a, out: w}
}

// attachPrefix marks a trailing attachment reference in a console line,
// e.g. "import @file:export.json".
const attachPrefix = "@file:"

// Parse turns a console line into a Source. A trailing "@file:<path>"
// token becomes the attachment and is removed from the text.
func (w *Writer) Parse(line string) *Source {
	fields := strings.Fields(line)
	if n := len(fields); n > 0 && strings.HasPrefix(fields[n-1], attachPrefix) {
		path := strings.TrimPrefix(fields[n-1], attachPrefix)
		text := strings.TrimSpace(strings.TrimSuffix(strings.TrimRight(line, " \t"), fields[n-1]))
		return w.NewSourceWithAttachment(text, &core.Attachment{Filename: path, URL: "file://" + path})
	}
	return w.NewSource(line)
}

// Lines scans r line by line and sends a Source for every non-empty line
// until r is exhausted or ctx is done. The channel is closed on return.
func (w *Writer) Lines(ctx context.Context, r io.Reader) <-chan core.Source {
	out := make(chan core.Source)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- w.Parse(line):
			}
		}
	}()
	return out
}
