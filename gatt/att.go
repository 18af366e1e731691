package gatt

import "encoding/hex"

// ATT error codes returned by Database reads and writes.
const (
	attEcodeSuccess           = 0x00
	attEcodeInvalidHandle     = 0x01
	attEcodeReadNotPerm       = 0x02
	attEcodeWriteNotPerm      = 0x03
	attEcodeInvalidPDU        = 0x04
	attEcodeReqNotSupp        = 0x06
	attEcodeInvalidOffset     = 0x07
	attEcodeAttrNotFound      = 0x0a
	attEcodeInvalAttrValueLen = 0x0d
	attEcodeUnlikely          = 0x0e
)

var attEcodeName = map[byte]string{
	attEcodeSuccess:           "success",
	attEcodeInvalidHandle:     "invalid handle",
	attEcodeReadNotPerm:       "read not permitted",
	attEcodeWriteNotPerm:      "write not permitted",
	attEcodeInvalidPDU:        "invalid pdu",
	attEcodeReqNotSupp:        "request not supported",
	attEcodeInvalidOffset:     "invalid offset",
	attEcodeAttrNotFound:      "attribute not found",
	attEcodeInvalAttrValueLen: "invalid attribute value length",
	attEcodeUnlikely:          "unlikely error",
}

// StatusText returns a description of an ATT status code.
func StatusText(s byte) string {
	if n, ok := attEcodeName[s]; ok {
		return n
	}
	return "status 0x" + hex.EncodeToString([]byte{s})
}

func hexDecode(dst []byte, s string) (int, error) {
	return hex.Decode(dst, []byte(s))
}
