package transcribe

import (
	"fmt"
	"io"
	"strings"
)

// Text writes the plain text rendering of the transcription: one line per
// segment, trimmed, in original order, no timestamps.
func (t Transcription) Text(w io.Writer) error {
	for i, s := range t.Segments {
		nl := "\n"
		if i == 0 {
			nl = ""
		}
		if _, err := fmt.Fprintf(w, "%s%s", nl, strings.TrimSpace(s.Text)); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}

	return nil
}
