package dfu

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment(t *testing.T) {
	cases := []struct {
		size, packet int
		want         []int
	}{
		{45, 20, []int{20, 20, 5}},
		{40, 20, []int{20, 20}},
		{0, 20, nil},
		{7, 3, []int{3, 3, 1}},
	}
	for _, tt := range cases {
		bin := bytes.Repeat([]byte{0xA5}, tt.size)
		img, err := Segment(bin, tt.packet)
		require.NoError(t, err)
		var got []int
		for _, p := range img.Packets {
			got = append(got, len(p))
		}
		assert.Equal(t, tt.want, got, "size %d packet %d", tt.size, tt.packet)
		n, err := ParseSizePacket(img.SizePacket)
		require.NoError(t, err)
		assert.EqualValues(t, tt.size, n)
		assert.Equal(t, bin, bytes.Join(img.Packets, nil)[:len(bin)])
	}

	_, err := Segment([]byte{1}, 0)
	assert.Error(t, err)
}

func TestSegmentCRCPacket(t *testing.T) {
	img, err := Segment([]byte("123456789"), PacketSize)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB1, 0x29}, img.CRCPacket)
	assert.EqualValues(t, 0x29B1, img.CRC())
	assert.Equal(t, []byte{9, 0, 0, 0}, img.SizePacket)

	crc, err := ParseCRCPacket(img.CRCPacket)
	require.NoError(t, err)
	assert.EqualValues(t, 0x29B1, crc)
	_, err = ParseCRCPacket([]byte{1})
	assert.Error(t, err)
}

const testHex = `:020000040000FA
:10000000000102030405060708090A0B0C0D0E0F78
:04001400AABBCCDDDA
:04000005000000CD2A
:00000001FF
`

func TestLoadHex(t *testing.T) {
	bin, err := LoadHex(strings.NewReader(testHex))
	require.NoError(t, err)
	want := []byte{
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
		0xFF, 0xFF, 0xFF, 0xFF,
		0xAA, 0xBB, 0xCC, 0xDD,
	}
	assert.Equal(t, want, bin)
}

func TestLoadHexErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"checksum", ":04001400AABBCCDDEE\n:00000001FF\n"},
		{"no eof", ":04001400AABBCCDDDA\n"},
		{"start code", "04001400AABBCCDDDA\n:00000001FF\n"},
		{"length", ":05001400AABBCCDDDA\n:00000001FF\n"},
	}
	for _, tt := range cases {
		_, err := LoadHex(strings.NewReader(tt.in))
		if !errors.Is(err, ErrHexFormat) {
			t.Errorf("%s: got %v want %v", tt.name, err, ErrHexFormat)
		}
	}
}

func TestLoadHexEmpty(t *testing.T) {
	bin, err := LoadHex(strings.NewReader(":00000001FF\n"))
	require.NoError(t, err)
	assert.Empty(t, bin)
}

func TestLoadHexLinearBase(t *testing.T) {
	in := ":020000040001F9\n:020000001122CB\n:00000001FF\n"
	bin, err := LoadHex(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x22}, bin)
}

func TestLoadImageFile(t *testing.T) {
	dir := t.TempDir()
	hexPath := filepath.Join(dir, "app.hex")
	binPath := filepath.Join(dir, "app.bin")
	require.NoError(t, os.WriteFile(hexPath, []byte(testHex), 0o644))
	require.NoError(t, os.WriteFile(binPath, []byte{1, 2, 3}, 0o644))

	bin, err := LoadImageFile(hexPath)
	require.NoError(t, err)
	assert.Len(t, bin, 24)

	bin, err = LoadImageFile(binPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, bin)

	_, err = LoadImageFile(filepath.Join(dir, "missing.hex"))
	assert.Error(t, err)
}
