package record_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/MikhailWahib/caskdb/internal/record"
	"github.com/MikhailWahib/caskdb/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Format(t *testing.T) {
	b, err := record.Encode(record.NewSet("mykey", "myvalue"))
	require.NoError(t, err)
	assert.Equal(t, `["mykey","myvalue"]`, string(b))

	b, err = record.Encode(record.NewTombstone("mykey"))
	require.NoError(t, err)
	assert.Equal(t, `["mykey",null]`, string(b))
}

func TestEncode_KeepsHTML(t *testing.T) {
	b, err := record.Encode(record.NewSet("<k>", "a & b"))
	require.NoError(t, err)
	assert.Equal(t, `["<k>","a & b"]`, string(b))
}

func TestEncodeDecode(t *testing.T) {
	entries := []record.Entry{
		record.NewSet("key", "value"),
		record.NewSet("", ""),
		record.NewSet("quote\"d", "line\nbreak"),
		record.NewSet("unicode ключ", "значение ✓"),
		record.NewSet("html", "<a href=\"x\">&</a>"),
		record.NewTombstone("gone"),
	}

	for _, e := range entries {
		b, err := record.Encode(e)
		require.NoError(t, err)

		got, err := record.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, e.Key, got.Key)
		assert.Equal(t, e.IsTombstone(), got.IsTombstone())
		if !e.IsTombstone() {
			assert.Equal(t, *e.Value, *got.Value)
		}
	}
}

func TestEncode_RejectsInvalidUTF8(t *testing.T) {
	_, err := record.Encode(record.NewSet("bad\xff", "v"))
	require.ErrorIs(t, err, shared.ErrSerialization)

	_, err = record.Encode(record.NewSet("k", "bad\xfe"))
	require.ErrorIs(t, err, shared.ErrSerialization)
}

func TestDecode_Invalid(t *testing.T) {
	for _, in := range []string{
		``,
		`null`,
		`"just a string"`,
		`["only-key"]`,
		`["k","v","extra"]`,
		`[1,"v"]`,
		`["k",2]`,
		`{"key":"k"}`,
		`[null,"v"]`,
		`[ null ,null]`,
		`[null,null]`,
		"[\"k\",\"\xff\"]",
		"[\"\xfe\",\"v\"]",
	} {
		_, err := record.Decode([]byte(in))
		assert.ErrorIs(t, err, shared.ErrSerialization, "input %q", in)
	}
}

func TestScanner_Spans(t *testing.T) {
	entries := []record.Entry{
		record.NewSet("a", "1"),
		record.NewSet("a", "2"),
		record.NewSet("b", "x"),
		record.NewTombstone("b"),
	}

	var buf bytes.Buffer
	var lengths []int
	for _, e := range entries {
		b, err := record.Encode(e)
		require.NoError(t, err)
		lengths = append(lengths, len(b))
		buf.Write(b)
	}
	raw := buf.Bytes()

	s := record.NewScanner(bytes.NewReader(raw))
	var offset int64
	for i, want := range entries {
		require.True(t, s.Scan(), "entry %d", i)
		start, end := s.Span()
		assert.Equal(t, offset, start)
		assert.Equal(t, offset+int64(lengths[i]), end)

		got := s.Entry()
		assert.Equal(t, want.Key, got.Key)
		assert.Equal(t, want.IsTombstone(), got.IsTombstone())

		// The span decodes on its own.
		alone, err := record.Decode(raw[start:end])
		require.NoError(t, err)
		assert.Equal(t, got.Key, alone.Key)

		offset = end
	}
	assert.False(t, s.Scan())
	require.NoError(t, s.Err())
	assert.Equal(t, int64(len(raw)), s.Offset())
}

func TestScanner_Empty(t *testing.T) {
	s := record.NewScanner(strings.NewReader(""))
	assert.False(t, s.Scan())
	assert.NoError(t, s.Err())
	assert.False(t, s.TornTail())
}

func TestScanner_TornTail(t *testing.T) {
	s := record.NewScanner(strings.NewReader(`["a","1"]["b","2"]["c","par`))

	require.True(t, s.Scan())
	require.True(t, s.Scan())
	assert.False(t, s.Scan())

	require.Error(t, s.Err())
	assert.True(t, s.TornTail())
	assert.Equal(t, int64(len(`["a","1"]["b","2"]`)), s.Offset())
}

func TestScanner_RejectsNullKeyAndBadUTF8(t *testing.T) {
	for _, in := range []string{
		`["a","1"][null,"x"]`,
		"[\"a\",\"1\"][\"b\",\"\xff\"]",
	} {
		s := record.NewScanner(strings.NewReader(in))
		require.True(t, s.Scan())
		assert.False(t, s.Scan(), "input %q", in)
		require.ErrorIs(t, s.Err(), shared.ErrSerialization)
		assert.False(t, s.TornTail())
	}
}

func TestScanner_Corrupted(t *testing.T) {
	s := record.NewScanner(strings.NewReader(`["a","1"]#garbage["b","2"]`))

	require.True(t, s.Scan())
	assert.False(t, s.Scan())
	require.ErrorIs(t, s.Err(), shared.ErrSerialization)
	assert.False(t, s.TornTail())
}
