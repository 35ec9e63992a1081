package attachments

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestParseMixedFiles(t *testing.T) {
	dir := t.TempDir()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 3))))

	refs := []string{
		writeFile(t, dir, "notes.md", []byte("# Notes\nline two\n")),
		writeFile(t, dir, "page.html", []byte(`<html><head><title>Report</title></head><body><article><h1>Report</h1><p>`+
			`The harbour ferry timetable changed in June and now runs every fifteen minutes during peak hours on weekdays.`+
			`</p><p>Evening services continue at thirty minute intervals until midnight, with extra sailings on public holidays.</p></article></body></html>`)),
		writeFile(t, dir, "chart.png", img.Bytes()),
		writeFile(t, dir, "blob.bin", []byte{0x00, 0x01, 0x02, 0xff}),
		filepath.Join(dir, "missing.txt"),
	}
	atts, err := NewParser(0).Parse(context.Background(), refs)
	require.NoError(t, err)
	require.Len(t, atts, 5)

	assert.Equal(t, TypeText, atts[0].Type)
	assert.Equal(t, "# Notes\nline two", atts[0].Content)
	assert.Equal(t, 3, atts[0].Metadata["lines"])
	assert.Positive(t, atts[0].TokenEstimate)

	assert.Equal(t, TypeHTML, atts[1].Type)
	assert.Contains(t, atts[1].Content, "ferry timetable")

	assert.Equal(t, TypeImage, atts[2].Type)
	assert.Equal(t, 4, atts[2].Metadata["width"])
	assert.Zero(t, atts[2].TokenEstimate)

	assert.Equal(t, TypeUnsupported, atts[3].Type)
	assert.Equal(t, TypeUnreadable, atts[4].Type)

	text := Render(atts)
	assert.Contains(t, text, "=== Attachment 1: notes.md (text) ===\n# Notes")
	assert.Contains(t, text, "Image file, 4x3 pixels.")
	assert.Contains(t, text, "=== Attachment 5: missing.txt (unreadable) ===")
}

func TestParseTruncates(t *testing.T) {
	p := writeFile(t, t.TempDir(), "long.txt", []byte("香港天氣預報今日晴朗"))
	atts, err := NewParser(4).Parse(context.Background(), []string{p})
	require.NoError(t, err)
	assert.Equal(t, "香港天氣", atts[0].Content)
	assert.Equal(t, true, atts[0].Metadata["truncated"])
	assert.Equal(t, 4, atts[0].TokenEstimate)
}

func TestParseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewParser(0).Parse(ctx, []string{"x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 2, EstimateTokens("hello!"))
	assert.Equal(t, 3, EstimateTokens("天氣ab"))
}

type fakeDescriber struct {
	desc   string
	err    error
	mime   string
	prompt string
	calls  int
}

func (f *fakeDescriber) DescribeImage(_ context.Context, image []byte, mimeType, prompt string) (string, error) {
	f.calls++
	f.mime = mimeType
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.desc, nil
}

func pngFile(t *testing.T, dir, name string) string {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return writeFile(t, dir, name, img.Bytes())
}

func TestParseDescribesImages(t *testing.T) {
	dir := t.TempDir()
	d := &fakeDescriber{desc: "A red taxi on Nathan Road."}
	p := NewParser(0).WithDescriber(d, "what is shown?", 0)

	atts, err := p.Parse(context.Background(), []string{
		pngFile(t, dir, "taxi.png"),
		writeFile(t, dir, "notes.txt", []byte("plain text")),
	})
	require.NoError(t, err)
	require.Len(t, atts, 2)

	assert.Equal(t, 1, d.calls)
	assert.Equal(t, "image/png", d.mime)
	assert.Equal(t, "what is shown?", d.prompt)
	assert.Equal(t, "A red taxi on Nathan Road.", atts[0].Content)
	assert.Equal(t, true, atts[0].Metadata["described"])
	assert.Positive(t, atts[0].TokenEstimate)
	assert.Contains(t, Render(atts), "Image file, 2x2 pixels. Description: A red taxi on Nathan Road.")
}

func TestParseImageDescriptionFailureKeepsMetadata(t *testing.T) {
	d := &fakeDescriber{err: errors.New("vision unavailable")}
	atts, err := NewParser(0).WithDescriber(d, "", 0).Parse(context.Background(), []string{pngFile(t, t.TempDir(), "logo.png")})
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, TypeImage, atts[0].Type)
	assert.Empty(t, atts[0].Content)
	assert.Nil(t, atts[0].Metadata["described"])
	assert.Equal(t, 2, atts[0].Metadata["width"])
	assert.Contains(t, Render(atts), "Image content is not available as text.")
}

func TestParseSkipsOversizedImages(t *testing.T) {
	d := &fakeDescriber{desc: "never used"}
	atts, err := NewParser(0).WithDescriber(d, "", 1).Parse(context.Background(), []string{pngFile(t, t.TempDir(), "big.png")})
	require.NoError(t, err)
	assert.Zero(t, d.calls)
	assert.Empty(t, atts[0].Content)
}
