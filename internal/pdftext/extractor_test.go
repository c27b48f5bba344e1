package pdftext

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagesExtractsTextPerPage(t *testing.T) {
	t.Parallel()

	data := buildPDF(t, []string{"Edital de convocacao", "Ana Maria Souza aprovada 1001"})

	pages, err := New().Pages(data)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "Edital")
	assert.Contains(t, strings.ToLower(pages[1]), "ana maria souza")
}

func TestPagesRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := New().Pages(nil)
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestPagesRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := New().Pages([]byte("<html>not a pdf</html>"))
	require.Error(t, err)
}

// buildPDF writes a minimal single-font PDF with one text line per page and a
// correct cross-reference table.
func buildPDF(t *testing.T, lines []string) []byte {
	t.Helper()

	n := len(lines)
	// Objects: 1 catalog, 2 pages, 3 font, then a page and a content stream per line.
	var objects []string
	kids := make([]string, n)
	for i := range lines {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, line := range lines {
		content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", line)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
