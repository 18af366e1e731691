package dfu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PacketSize is the transfer packet payload size.
const PacketSize = 20

// An Image is a firmware image split for transfer.
type Image struct {
	Bin        []byte
	SizePacket []byte   // 4 byte little-endian image length
	CRCPacket  []byte   // 2 byte little-endian CRC16 of Bin
	Packets    [][]byte // contiguous chunks of at most packetSize bytes
}

// Segment splits bin into packetSize chunks and derives the size and CRC
// packets. The final chunk holds the remainder; nothing is padded.
func Segment(bin []byte, packetSize int) (*Image, error) {
	if packetSize <= 0 {
		return nil, fmt.Errorf("invalid packet size %d", packetSize)
	}
	if uint64(len(bin)) > 0xFFFFFFFF {
		return nil, errors.New("image larger than 4 GiB")
	}
	img := &Image{
		Bin:        bin,
		SizePacket: make([]byte, 4),
		CRCPacket:  make([]byte, 2),
	}
	binary.LittleEndian.PutUint32(img.SizePacket, uint32(len(bin)))
	binary.LittleEndian.PutUint16(img.CRCPacket, CRC16(bin))
	for off := 0; off < len(bin); off += packetSize {
		end := off + packetSize
		if end > len(bin) {
			end = len(bin)
		}
		img.Packets = append(img.Packets, bin[off:end])
	}
	return img, nil
}

// Size is the image length in bytes.
func (img *Image) Size() int { return len(img.Bin) }

// CRC is the image checksum.
func (img *Image) CRC() uint16 { return binary.LittleEndian.Uint16(img.CRCPacket) }

// ParseSizePacket decodes a size packet.
func ParseSizePacket(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("size packet: got %d bytes want 4", len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ParseCRCPacket decodes a CRC packet.
func ParseCRCPacket(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("crc packet: got %d bytes want 2", len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

// LoadImageFile reads a firmware image. Files ending in .hex or .ihex are
// parsed as Intel HEX; anything else is taken as a raw binary.
func LoadImageFile(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		bin, err := LoadHex(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return bin, nil
	}
	return os.ReadFile(path)
}
