package protocol

// CRC-16/CCITT-FALSE: polynomial 0x1021, initial value 0xFFFF, no reflection.
// Any burst error of 16 bits or less, and so any single mutated byte, changes the value.
const (
	crcPoly uint16 = 0x1021
	crcInit uint16 = 0xFFFF
)

var crcTable = makeCRCTable()

func makeCRCTable() [256]uint16 {
	var t [256]uint16
	for i := range t {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPoly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Checksum returns the integrity value carried in the body trailer of every frame.
func Checksum(data []byte) uint16 {
	crc := crcInit
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>8)^b]
	}
	return crc
}
