package gcode

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func TestScan_TimeOnly(t *testing.T) {
	extract, err := Ingest([]byte(";TIME:3600\n"), false)
	require.NoError(t, err)

	require.True(t, extract.HasTime())
	assert.Equal(t, 3600.0, *extract.TimeSeconds)
	assert.Equal(t, 0.0, extract.FilamentMm)
	assert.True(t, extract.Partial())

	hours, ok := extract.Hours()
	assert.True(t, ok)
	assert.Equal(t, 1.0, hours)
}

func TestScan_AbsoluteExtrusionIgnoresRetraction(t *testing.T) {
	extract := Scan(lines("M82", "G1 X10 E5", "G1 X20 E12", "G1 X5 E3"))

	assert.InDelta(t, 12.0, extract.FilamentMm, 1e-9)
	assert.False(t, extract.FilamentFromMetadata)
	assert.False(t, extract.HasTime())
}

func TestScan_RelativeExtrusion(t *testing.T) {
	extract := Scan(lines("M83", "G1 E2.5", "G1 E1.0"))

	assert.InDelta(t, 3.5, extract.FilamentMm, 1e-9)
}

func TestScan_RelativeRetractionIgnored(t *testing.T) {
	extract := Scan(lines("M83", "G1 E2", "G1 E-1", "G1 E1"))

	assert.InDelta(t, 3.0, extract.FilamentMm, 1e-9)
}

func TestScan_DefaultModeIsAbsolute(t *testing.T) {
	extract := Scan(lines("G1 E4", "G1 E10"))

	assert.InDelta(t, 10.0, extract.FilamentMm, 1e-9)
}

func TestScan_G92ResetsCurrentE(t *testing.T) {
	extract := Scan(lines("G1 E10", "G92 E0", "G1 E4"))

	assert.InDelta(t, 14.0, extract.FilamentMm, 1e-9)
}

func TestScan_G92ResetInRelativeMode(t *testing.T) {
	extract := Scan(lines("M83", "G1 E3", "G92 E0", "M82", "G1 E2"))

	assert.InDelta(t, 5.0, extract.FilamentMm, 1e-9)
}

func TestScan_FilamentCommentOverridesExtrusion(t *testing.T) {
	extract := Scan(lines("G1 E100", ";Filament used: 1500.0mm", "G1 E200"))

	assert.Equal(t, 1500.0, extract.FilamentMm)
	assert.True(t, extract.FilamentFromMetadata)
}

func TestScan_LastFilamentCommentWins(t *testing.T) {
	extract := Scan(lines(";Filament used: 100mm", ";FILAMENT USED: 250.5mm"))

	assert.Equal(t, 250.5, extract.FilamentMm)
}

func TestScan_NonPositiveFilamentFallsBack(t *testing.T) {
	extract := Scan(lines(";Filament used: 0mm", "G1 E7"))

	assert.InDelta(t, 7.0, extract.FilamentMm, 1e-9)
	assert.False(t, extract.FilamentFromMetadata)
}

func TestScan_FilamentDialects(t *testing.T) {
	metres := Scan(lines(";Filament used: 1.5m"))
	assert.InDelta(t, 1500.0, metres.FilamentMm, 1e-9)

	prusa := Scan(lines("; filament used [mm] = 2345.67", "; filament used [g] = 7.0"))
	assert.InDelta(t, 2345.67, prusa.FilamentMm, 1e-9)
}

func TestScan_TimeDialects(t *testing.T) {
	cases := []struct {
		name   string
		line   string
		want   float64
		source string
	}{
		{name: "cura", line: ";TIME:1234", want: 1234, source: "cura"},
		{name: "print time", line: ";Print time: 900", want: 900, source: "print-time"},
		{name: "estimated seconds", line: ";Estimated printing time: 5025s", want: 5025, source: "estimated"},
		{name: "estimated units", line: ";Estimated printing time: 1d 2h 3m 4s", want: 93784, source: "estimated"},
		{name: "estimated mode units", line: "; estimated printing time (normal mode) = 1h 2m 3s", want: 3723, source: "estimated-mode"},
		{name: "estimated mode seconds", line: "; estimated printing time = 3723s", want: 3723, source: "estimated-mode"},
		{name: "m73", line: "M73 P0 R85", want: 5100, source: "m73"},
		{name: "elapsed", line: ";TIME_ELAPSED:42.5", want: 42.5, source: "elapsed"},
		{name: "lower case", line: ";time:60", want: 60, source: "cura"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			extract := Scan(lines(tc.line))
			require.True(t, extract.HasTime())
			assert.InDelta(t, tc.want, *extract.TimeSeconds, 1e-9)
			assert.Equal(t, tc.source, extract.TimeSource)
		})
	}
}

func TestMatchTime_PriorityOrder(t *testing.T) {
	v, source, ok := matchTime(";Print time: 50 ;TIME:100")
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
	assert.Equal(t, "cura", source)

	v, source, ok = matchTime("M73 P10 R2 ;TIME_ELAPSED:7")
	require.True(t, ok)
	assert.Equal(t, 120.0, v)
	assert.Equal(t, "m73", source)

	_, _, ok = matchTime("G1 X10 E5")
	assert.False(t, ok)
}

func TestScan_FirstTimeWins(t *testing.T) {
	extract := Scan(lines(";TIME:100", ";TIME:200", "M73 P0 R10"))

	assert.Equal(t, 100.0, *extract.TimeSeconds)
}

func TestScan_MalformedLinesSkipped(t *testing.T) {
	extract := Scan(lines("G1 E5", "G1 Eabc", "G92 Exyz", "G1 E8"))

	assert.InDelta(t, 8.0, extract.FilamentMm, 1e-9)
}

func TestScan_CompactWords(t *testing.T) {
	cases := []struct {
		name string
		text string
		want float64
	}{
		{name: "relative", text: lines("M83", "G1X10E5", "G1 X10E2.5"), want: 7.5},
		{name: "absolute with reset", text: lines("G1X1E4", "G92E0", "G1X2E3"), want: 7},
		{name: "line number", text: lines("N7G1X1E2*12", "N8 G1 X2 E6"), want: 6},
		{name: "spaced value", text: lines("M83", "G1 X1 E 1.5"), want: 1.5},
		{name: "malformed skipped", text: lines("M83", "G1X1E1.2.3", "G1X1E2"), want: 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			extract := Scan(tc.text)
			assert.InDelta(t, tc.want, extract.FilamentMm, 1e-9)
		})
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"G1", "X10", "E5"}, words("g1x10e5"))
	assert.Equal(t, []string{"G92", "E0"}, words("G92 E0 "))
	assert.Empty(t, words("   "))
}

func TestScan_CommentsLineNumbersAndChecksums(t *testing.T) {
	extract := Scan(lines(
		"; M83 mentioned in a comment",
		"N10 G1 X1 E2*45",
		"G01 X2 E5 ; move",
		"G1 X3 ; E100",
	))

	assert.InDelta(t, 5.0, extract.FilamentMm, 1e-9)
}

func TestIngest_NoData(t *testing.T) {
	_, err := Ingest([]byte(lines("G28", "G1 X10 Y10")), false)

	assert.ErrorIs(t, err, ErrNoData)
}

func TestIngest_Latin1Fallback(t *testing.T) {
	raw := append([]byte(";Material: \xe9tain\n"), []byte(";TIME:60\n")...)

	extract, err := Ingest(raw, false)
	require.NoError(t, err)
	assert.Equal(t, 60.0, *extract.TimeSeconds)
}

func TestIngest_ByteOrderMark(t *testing.T) {
	extract, err := Ingest([]byte("\xef\xbb\xbf;TIME:30\n"), false)
	require.NoError(t, err)
	assert.Equal(t, 30.0, *extract.TimeSeconds)
}

func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestIngest_Container(t *testing.T) {
	raw := buildArchive(t, map[string]string{
		"3D/3dmodel.model":           "<model/>",
		"Metadata/plate_1.gcode":     lines("; estimated printing time (normal mode) = 2h", "M83", "G1 E10"),
		"Metadata/plate_1.gcode.md5": "abc",
	})

	extract, err := Ingest(raw, true)
	require.NoError(t, err)
	assert.Equal(t, 7200.0, *extract.TimeSeconds)
	assert.InDelta(t, 10.0, extract.FilamentMm, 1e-9)
}

func TestIngest_ContainerWithoutToolpath(t *testing.T) {
	raw := buildArchive(t, map[string]string{"3D/3dmodel.model": "<model/>"})

	_, err := Ingest(raw, true)

	var containerErr *ContainerError
	require.True(t, errors.As(err, &containerErr))
	assert.Equal(t, "no toolpath entry found", containerErr.Reason)
}

func TestIngest_UnreadableContainer(t *testing.T) {
	_, err := Ingest([]byte("not a zip"), true)

	var containerErr *ContainerError
	assert.True(t, errors.As(err, &containerErr))
}

func TestIngestFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "part.gcode")
	require.NoError(t, os.WriteFile(path, []byte(";TIME:120\n;Filament used: 660mm\n"), 0o600))

	extract, err := IngestFile(path)
	require.NoError(t, err)
	assert.Equal(t, 120.0, *extract.TimeSeconds)
	assert.InDelta(t, 2.0, extract.Grams(), 1e-9)

	archive := filepath.Join(dir, "part.gcode.3mf")
	require.NoError(t, os.WriteFile(archive, buildArchive(t, map[string]string{"Metadata/plate_1.gcode": ";TIME:5\n"}), 0o600))

	extract, err = IngestFile(archive)
	require.NoError(t, err)
	assert.Equal(t, 5.0, *extract.TimeSeconds)

	_, err = IngestFile(filepath.Join(dir, "missing.gcode"))
	var ioErr *IOError
	assert.True(t, errors.As(err, &ioErr))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtensions(t *testing.T) {
	assert.True(t, IsContainer("Part.GCODE.3MF"))
	assert.True(t, IsContainer("job.zip"))
	assert.False(t, IsContainer("part.gcode"))
	assert.True(t, IsToolpath("plate_1.gcode"))
	assert.True(t, IsToolpath("PART.GCO"))
	assert.False(t, IsToolpath("plate_1.gcode.md5"))
}

func TestGrams(t *testing.T) {
	assert.InDelta(t, 1.0, Grams(330), 1e-12)
	assert.InDelta(t, 0.0, Grams(0), 1e-12)
}
