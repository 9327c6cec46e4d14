// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

// CRC is the Modbus RTU CRC-16 (polynomial 0xA001, init 0xFFFF).
type CRC struct {
	high byte
	low  byte
}

var table [256]uint16

func init() {
	for i := range table {
		v := uint16(i)
		for j := 0; j < 8; j++ {
			if v&1 != 0 {
				v = v>>1 ^ 0xA001
			} else {
				v >>= 1
			}
		}
		table[i] = v
	}
}

func (crc *CRC) Reset() *CRC {
	crc.high = 0xFF
	crc.low = 0xFF
	return crc
}

func (crc *CRC) PushBytes(bs []byte) *CRC {
	v := uint16(crc.high)<<8 | uint16(crc.low)
	for _, b := range bs {
		v = v>>8 ^ table[byte(v)^b]
	}
	crc.high = byte(v >> 8)
	crc.low = byte(v)
	return crc
}

func (crc *CRC) Value() uint16 {
	return uint16(crc.high)<<8 | uint16(crc.low)
}
