package codec

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(64)
	w.Uint8(7)
	w.Bool(true)
	w.Uint16(math.MaxUint16)
	w.Uint32(math.MaxUint32)
	w.Uint64(math.MaxUint64)
	w.Int32(math.MinInt32)
	w.Float64(-12.5)
	w.String("")
	w.String("héllo")
	w.Blob(nil)
	w.Blob([]byte{1, 2, 3})
	w.Strings([]string{"a", "", "c"})
	w.Strings(nil)

	r := NewReader(w.Bytes())
	u8, err := r.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)
	b, err := r.Bool()
	require.NoError(t, err)
	assert.True(t, b)
	u16, err := r.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(math.MaxUint16), u16)
	u32, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), u32)
	u64, err := r.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), u64)
	i32, err := r.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), i32)
	f, err := r.Float64()
	require.NoError(t, err)
	assert.Equal(t, -12.5, f)
	s, err := r.String()
	require.NoError(t, err)
	assert.Equal(t, "", s)
	s, err = r.String()
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)
	blob, err := r.Blob()
	require.NoError(t, err)
	assert.Empty(t, blob)
	blob, err = r.Blob()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, blob)
	ss, err := r.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "c"}, ss)
	ss, err = r.Strings()
	require.NoError(t, err)
	assert.Nil(t, ss)
	assert.NoError(t, r.Done())
	assert.NoError(t, w.Err())
}

func TestReaderErrors(t *testing.T) {
	testCases := []struct {
		name    string
		input   []byte
		read    func(r *Reader) error
		wantErr error
	}{
		{
			name:    "short u32",
			input:   []byte{0, 0, 1},
			read:    func(r *Reader) error { _, err := r.Uint32(); return err },
			wantErr: ErrTruncated,
		},
		{
			name:    "string body missing",
			input:   []byte{0, 5, 'a', 'b'},
			read:    func(r *Reader) error { _, err := r.String(); return err },
			wantErr: ErrTruncated,
		},
		{
			name:    "invalid utf8",
			input:   []byte{0, 2, 0xc3, 0x28},
			read:    func(r *Reader) error { _, err := r.String(); return err },
			wantErr: ErrMalformed,
		},
		{
			name:    "bad bool",
			input:   []byte{2},
			read:    func(r *Reader) error { _, err := r.Bool(); return err },
			wantErr: ErrMalformed,
		},
		{
			name:    "count beyond any body",
			input:   []byte{0xff, 0xff, 0xff, 0xff},
			read:    func(r *Reader) error { _, err := r.Count(4); return err },
			wantErr: ErrMalformed,
		},
		{
			name:    "count beyond input",
			input:   []byte{0, 0, 0, 3, 0, 0},
			read:    func(r *Reader) error { _, err := r.Count(2); return err },
			wantErr: ErrTruncated,
		},
		{
			name:    "blob beyond any body",
			input:   []byte{0x7f, 0xff, 0xff, 0xff},
			read:    func(r *Reader) error { _, err := r.Blob(); return err },
			wantErr: ErrMalformed,
		},
		{
			name:    "trailing bytes",
			input:   []byte{1, 2},
			read:    func(r *Reader) error { _, _ = r.Uint8(); return r.Done() },
			wantErr: ErrMalformed,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.read(NewReader(tc.input))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestWriterStringTooLong(t *testing.T) {
	w := NewWriter(0)
	w.String(string(make([]byte, MaxStringLen+1)))
	w.Uint8(1)
	assert.ErrorIs(t, w.Err(), ErrFieldTooLong)
	assert.Equal(t, 2+MaxStringLen+1, w.Len())
}

func TestWriterStringInvalidUTF8(t *testing.T) {
	w := NewWriter(0)
	w.String("ok")
	w.String("\xff\xfe")
	w.String(string(make([]byte, MaxStringLen+1)))
	// the first failure sticks
	assert.ErrorIs(t, w.Err(), ErrMalformed)
	assert.NotErrorIs(t, w.Err(), ErrFieldTooLong)
}

func TestWriterStringCutsOnRuneBoundary(t *testing.T) {
	// 'é' is two bytes, so MaxStringLen lands in the middle of the last rune
	s := strings.Repeat("é", MaxStringLen/2+1)
	w := NewWriter(0)
	w.String(s)
	assert.ErrorIs(t, w.Err(), ErrFieldTooLong)

	got, err := NewReader(w.Bytes()).String()
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, MaxStringLen-1)
	assert.True(t, strings.HasPrefix(s, got))
}

func TestStringsEmptyDecodesNil(t *testing.T) {
	w := NewWriter(0)
	w.Strings([]string{})
	got, err := NewReader(w.Bytes()).Strings()
	require.NoError(t, err)
	assert.Nil(t, got)
}
