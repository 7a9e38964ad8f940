package format

import (
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{1, "1.00 Bytes"},
		{1023, "1023.00 Bytes"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1048576, "1.00 MB"},
		{1048575, "1024.00 KB"},
		{5 * 1024 * 1024 * 1024, "5.00 GB"},
		// Beyond the table: clamped to GB.
		{1 << 40, "1024.00 GB"},
		{math.MaxInt64, "8589934592.00 GB"},
	}

	for _, tt := range tests {
		got, err := FormatFileSize(tt.bytes)
		require.NoError(t, err, "bytes=%d", tt.bytes)
		assert.Equal(t, tt.want, got, "bytes=%d", tt.bytes)
	}
}

func TestFormatFileSizeUnitNeverOutOfRange(t *testing.T) {
	for shift := 0; shift < 63; shift++ {
		s, err := FormatFileSize(int64(1) << shift)
		require.NoError(t, err)
		assert.Regexp(t, `^\d+\.\d{2} (Bytes|KB|MB|GB)$`, s)
	}
}

func TestFormatFileSizeNegative(t *testing.T) {
	_, err := FormatFileSize(-1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidByteCount))
	assert.Equal(t, UnknownSize, MustFormatFileSize(-1))
}

func TestFormatDate(t *testing.T) {
	got := FormatDate("2024-01-15T14:30:00Z")
	assert.Equal(t, "January 15, 2024 at 02:30 PM", got)
	assert.Contains(t, got, "January 15, 2024")
}

func TestFormatDateInputs(t *testing.T) {
	want := "March 15, 2024 at 02:30 PM"
	ts := time.Date(2024, time.March, 15, 14, 30, 22, 0, time.UTC)

	inputs := []any{
		"2024-03-15T14:30:22Z",
		"2024-03-15T14:30:22",
		"2024-03-15 14:30:22",
		"20240315T143022Z",
		"20240315_143022",
		"2024-03-15_14-30-22",
		ts,
		&ts,
		ts.UnixMilli(),
		float64(ts.UnixMilli()),
	}
	for _, in := range inputs {
		assert.Equal(t, want, FormatDate(in), "input=%v", in)
	}

	assert.Equal(t, "March 15, 2024 at 12:00 AM", FormatDate("20240315"))
}

func TestFormatDateInvalid(t *testing.T) {
	for _, in := range []any{"not a date", "", nil, struct{}{}, time.Time{}} {
		assert.Equal(t, InvalidDate, FormatDate(in), "input=%v", in)

		_, err := FormatDateStrict(in)
		assert.True(t, errors.Is(err, ErrInvalidDate), "input=%v", in)
	}
}

func TestDateFormatterLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	f := NewDateFormatter(loc)

	assert.Equal(t, "January 15, 2024 at 09:30 AM", f.Format("2024-01-15T14:30:00Z"))
	// Zone-less input is read in the formatter's location.
	assert.Equal(t, "January 15, 2024 at 02:30 PM", f.Format("2024-01-15T14:30:00"))
	assert.Equal(t, loc, f.Location())
}

func TestFormatToast(t *testing.T) {
	assert.Equal(t, "[SUCCESS] Upload complete", FormatToast("Upload complete", SeveritySuccess))
	assert.Equal(t, "[INFO] hello", FormatToast("hello", ""))
	assert.Equal(t, "[CUSTOM] x", FormatToast("x", "custom"))
}

func TestNotifierShowEmitsOneLine(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := NewNotifier(zap.New(core))

	line := n.Show("Upload complete", SeveritySuccess)

	assert.Equal(t, "[SUCCESS] Upload complete", line)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "[SUCCESS] Upload complete", entry.Message)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
}

func TestNotifierLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := NewNotifier(zap.New(core))

	n.Info("a")
	n.Show("b", SeverityWarning)
	n.Show("c", SeverityError)
	n.Show("d", "WARNING")
	n.Show("e", "Error")

	entries := logs.All()
	require.Len(t, entries, 5)
	assert.Equal(t, "[INFO] a", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "[WARNING] d", entries[3].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[4].Level)
}

func TestNewNotifierNilLogger(t *testing.T) {
	assert.Equal(t, "[INFO] quiet", NewNotifier(nil).Info("quiet"))
}

func TestLifecycleRunsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var l Lifecycle
	l.OnReady(ReadyHook(zap.New(core)))

	assert.False(t, l.IsReady())
	assert.Equal(t, 0, logs.Len(), "hook must not run before Ready")

	l.Ready()
	l.Ready()

	assert.True(t, l.IsReady())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, ReadyMessage, logs.All()[0].Message)
}

func TestLifecycleOrderAndLateHooks(t *testing.T) {
	var l Lifecycle
	var order []int
	l.OnReady(func() { order = append(order, 1) })
	l.OnReady(func() { order = append(order, 2) })
	l.Ready()
	l.OnReady(func() { order = append(order, 3) })

	assert.Equal(t, []int{1, 2, 3}, order)
}
