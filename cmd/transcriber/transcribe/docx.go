package transcribe

import (
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
)

const docxTitle = "Transcription"

// DOCX writes the transcription as a Word document: a title heading
// followed by one paragraph per segment, each with a bold timestamp range
// and the trimmed segment text in regular style.
func (t Transcription) DOCX(w io.Writer) error {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText(docxTitle).Size("48").Bold()

	for _, s := range t.Segments {
		p := doc.AddParagraph()
		p.AddText(fmt.Sprintf("[%s - %s] ", docTS(s.Start), docTS(s.End))).Bold()
		p.AddText(strings.TrimSpace(s.Text))
	}

	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}

	return nil
}
