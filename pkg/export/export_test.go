package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"id", "depth", "author", "message"},
		Rows: []map[string]string{
			{"id": "e0", "depth": "0", "author": "student-1", "message": "new entry"},
			{"id": "e1", "depth": "1", "author": "teacher-1", "message": "reply, with comma"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := (&CSVExporter{}).Render(sampleDataset(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "id,depth,author,message\ne0,0,student-1,new entry\ne1,1,teacher-1,\"reply, with comma\"\n", string(out))
}

func TestCSVExporterPrependsBOM(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset(), "")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}))
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	data := Dataset{
		Headers: []string{"message"},
		Rows: []map[string]string{
			{"message": "=HYPERLINK(\"http://x\")"},
			{"message": "@SUM(A1)"},
			{"message": "-1"},
			{"message": "plain"},
		},
	}
	out, err := (&CSVExporter{}).Render(data, "")
	require.NoError(t, err)
	assert.Equal(t, "message\n\"'=HYPERLINK(\"\"http://x\"\")\"\n'@SUM(A1)\n'-1\nplain\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{}, "")
	assert.ErrorIs(t, err, ErrNoHeaders)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter("message").Render(sampleDataset(), "Threaded topic")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRowIndentCapsDeepThreads(t *testing.T) {
	assert.Equal(t, 0.0, rowIndent(map[string]string{"depth": "x"}))
	assert.Equal(t, 12.0, rowIndent(map[string]string{"depth": "2"}))
	assert.Equal(t, maxIndent, rowIndent(map[string]string{"depth": "40"}))
}
