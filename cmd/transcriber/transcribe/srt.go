package transcribe

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// splitTS decomposes secs, an elapsed time in seconds, into hours, minutes,
// seconds and milliseconds. Milliseconds are truncated, not rounded, from
// the sub-second fraction. Elapsed days fold into the hour count.
func splitTS(secs float64) (h, m, s, ms int64) {
	us := int64(math.Round(secs * 1e6))

	ms = (us / 1000) % 1000
	total := us / 1e6
	s = total % 60
	m = (total / 60) % 60
	h = total / 3600

	return h, m, s, ms
}

// srtTS converts secs in the 00:00:00,000 SubRip timestamp format.
func srtTS(secs float64) string {
	h, m, s, ms := splitTS(secs)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// docTS is the same decomposition as srtTS with a period before the
// milliseconds, as used in the document output.
func docTS(secs float64) string {
	h, m, s, ms := splitTS(secs)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// SRT writes the transcription in SubRip format: a 1-based sequential
// index, a timestamp range line, the trimmed text, and a blank separator
// line between entries.
func (t Transcription) SRT(w io.Writer) error {
	for i, s := range t.Segments {
		nl := "\n"
		if i == 0 {
			nl = ""
		}
		_, err := fmt.Fprintf(w, "%s%d\n%s --> %s\n%s\n", nl, i+1,
			srtTS(s.Start), srtTS(s.End), strings.TrimSpace(s.Text))
		if err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}

	return nil
}
