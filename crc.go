package dfu

// CRCInit is the initial CRC accumulator value.
const CRCInit uint16 = 0xFFFF

// UpdateCRC folds b into crc. The polynomial is 0x1021 (CRC-16/CCITT, MSB
// first); the shifts below are the table-free form the bootloader computes.
func UpdateCRC(crc uint16, b byte) uint16 {
	crc = crc>>8 | crc<<8
	crc ^= uint16(b)
	crc ^= (crc & 0xFF) >> 4
	crc ^= crc << 12
	crc ^= (crc & 0xFF) << 5
	return crc
}

// CRC16 computes the image checksum of data starting from CRCInit.
func CRC16(data []byte) uint16 {
	crc := CRCInit
	for _, b := range data {
		crc = UpdateCRC(crc, b)
	}
	return crc
}
