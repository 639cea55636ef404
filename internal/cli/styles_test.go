package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTable(t *testing.T) {
	out := RenderTable(
		[]string{"ID", "SCORE"},
		[][]string{{"review-1", "0.84"}, {"r2", "0.7"}, {"short"}},
	)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[0], "SCORE")
	assert.Equal(t, "review-1  0.84", lines[1])
	assert.Equal(t, "r2        0.7", lines[2])
	assert.Equal(t, "short", lines[3])
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "75.0%", FormatPercent(0.75))
	assert.Equal(t, "100.0%", FormatPercent(1))
}

func TestFormatters(t *testing.T) {
	assert.Contains(t, FormatSuccess("done"), "done")
	assert.Contains(t, FormatError("failed"), ErrorIcon)
	assert.Contains(t, FormatWarning("careful"), "careful")
	assert.Contains(t, RenderBox("Scan", "3 listings"), "3 listings")
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 2, "Scanning")
	p.Step()
	p.Step()
	p.Finish()
	assert.Contains(t, buf.String(), "2/2")
}
