package fitsio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/pulsarpkg/arcfinder/internal/spectrum"
)

const fitsBlockSize = 2880

// buildFITS assembles a minimal single-HDU FITS file: a header block of
// 80-byte cards followed by a BITPIX=-64 big-endian image block.
func buildFITS(t *testing.T, cards []string, data [][]float64) []byte {
	t.Helper()

	var buf bytes.Buffer
	for _, card := range cards {
		if len(card) > 80 {
			t.Fatalf("card longer than 80 bytes: %q", card)
		}
		buf.WriteString(card)
		buf.WriteString(string(bytes.Repeat([]byte{' '}, 80-len(card))))
	}
	buf.WriteString("END")
	pad(&buf)

	for _, row := range data {
		for _, v := range row {
			var cell [8]byte
			binary.BigEndian.PutUint64(cell[:], math.Float64bits(v))
			buf.Write(cell[:])
		}
	}
	pad(&buf)
	return buf.Bytes()
}

func pad(buf *bytes.Buffer) {
	if rem := buf.Len() % fitsBlockSize; rem != 0 {
		buf.Write(bytes.Repeat([]byte{' '}, fitsBlockSize-rem))
	}
}

func card(key, value string) string {
	return fmt.Sprintf("%-8s= %s", key, value)
}

func testCards() []string {
	return []string{
		card("SIMPLE", "T"),
		card("BITPIX", "-64"),
		card("NAXIS", "2"),
		card("NAXIS1", "3"),
		card("NAXIS2", "2"),
		card("FREQ", "430.0"),
		card("BW", "10.0"),
		card("T_INT", "3600.0"),
		card("MJD", "53812.4"),
		card("SOURCE", "'B0834+06'"),
		card("ORIGIN", "'arecibo'"),
	}
}

func TestRead(t *testing.T) {
	data := [][]float64{
		{1, 2, 3},
		{4, 5, 6},
	}
	raw := buildFITS(t, testCards(), data)

	meta, got, err := Read(bytes.NewReader(raw), "B0834+06_430.fits", false)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	want := spectrum.Metadata{
		Source:          "B0834+06",
		Filename:        "B0834+06_430.fits",
		Origin:          "arecibo",
		MJD:             53812.4,
		CenterFrequency: 430,
		Bandwidth:       10,
		IntegrationTime: 3600,
		ChannelCount:    2,
		SubintCount:     3,
	}
	if meta != want {
		t.Errorf("Read() meta = %+v, want %+v", meta, want)
	}

	if len(got) != 2 || len(got[0]) != 3 {
		t.Fatalf("Read() matrix is %dx%d, want 2x3", len(got), len(got[0]))
	}
	for i := range data {
		for j := range data[i] {
			if got[i][j] != data[i][j] {
				t.Errorf("cell [%d][%d] = %v, want %v", i, j, got[i][j], data[i][j])
			}
		}
	}
}

func TestRead_RotateSwapsCounts(t *testing.T) {
	raw := buildFITS(t, testCards(), [][]float64{{1, 2, 3}, {4, 5, 6}})

	meta, _, err := Read(bytes.NewReader(raw), "obs.fits", true)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if meta.ChannelCount != 3 || meta.SubintCount != 2 {
		t.Errorf("rotated counts = (%d, %d), want (3, 2)", meta.ChannelCount, meta.SubintCount)
	}
	if !meta.Rotate {
		t.Error("rotate flag not carried in metadata")
	}
}

func TestRead_MissingHeaderKey(t *testing.T) {
	var cards []string
	for _, c := range testCards() {
		if c[:5] != "T_INT" {
			cards = append(cards, c)
		}
	}
	raw := buildFITS(t, cards, [][]float64{{1, 2, 3}, {4, 5, 6}})

	_, _, err := Read(bytes.NewReader(raw), "obs.fits", false)
	if !errors.Is(err, spectrum.ErrMissingMetadata) {
		t.Fatalf("Read() error = %v, want ErrMissingMetadata", err)
	}
}
