// Package crc implements the table-driven cyclic redundancy codes of the
// AUTOSAR E2E profile family. All functions are pure: they share no mutable
// state and may be called concurrently.
package crc

// Profile01 calculates the CRC-8 of buf, continuing from start.
//
// Parameters: Width 8, Poly 0x1D, XorIn 0xFF, ReflectIn false,
// XorOut 0xFF, ReflectOut false.
//
// Chaining across a split buffer works because XorIn and XorOut are the
// same constant: the final XOR of one call cancels against the input XOR
// of the next, so Profile01(b2, Profile01(b1, s)) equals
// Profile01(b1++b2, s) and an empty range returns start unchanged.
func Profile01(buf []byte, start uint8) uint8 {
	crc := start ^ 0xFF
	for _, b := range buf {
		// Right-shifting a uint8 register by 8 always yields zero, so the
		// usual "^ (crc >> 8)" term is omitted. The lookup alone carries
		// the full register.
		crc = tableProfile01[b^crc]
	}
	return crc ^ 0xFF
}

// Profile04 calculates the CRC-32 of buf, continuing from start.
//
// Parameters: Width 32, Poly 0xF4ACFB13, XorIn 0xFFFFFFFF, ReflectIn true,
// XorOut 0xFFFFFFFF, ReflectOut true.
//
// Splitting holds exactly: Profile04(b2, Profile04(b1, s)) equals
// Profile04(b1++b2, s).
func Profile04(buf []byte, start uint32) uint32 {
	crc := start ^ 0xFFFFFFFF
	for _, b := range buf {
		crc = tableProfile04[byte(crc)^b] ^ (crc >> 8)
	}
	return crc ^ 0xFFFFFFFF
}

// Profile05 calculates the CRC-16 of buf, continuing from start.
//
// Parameters: Width 16, Poly 0x1021, ReflectIn false, ReflectOut false.
// There is no XorIn beyond the caller-provided start value and the
// specified final XOR is zero, so the running register is returned as is
// and splitting holds directly.
func Profile05(buf []byte, start uint16) uint16 {
	crc := start
	for _, b := range buf {
		crc = tableProfile05[byte(crc>>8)^b] ^ (crc << 8)
	}
	return crc
}

// Profile07 calculates the CRC-64 of buf, continuing from start.
//
// Parameters: Width 64, Poly 0x42F0E1EBA9EA3693, XorIn all-ones,
// ReflectIn true, XorOut all-ones, ReflectOut true.
//
// Splitting holds exactly, as for Profile04.
func Profile07(buf []byte, start uint64) uint64 {
	crc := start ^ 0xFFFFFFFFFFFFFFFF
	for _, b := range buf {
		crc = tableProfile07[byte(crc)^b] ^ (crc >> 8)
	}
	return crc ^ 0xFFFFFFFFFFFFFFFF
}

// Custom calculates the CRC-32 of buf with a fixed initial value.
//
// Parameters: Width 32, Poly 0x04C11DB7, InitValue 0xFFFFFFFF,
// ReflectIn true, XorOut 0xFFFFFFFF, ReflectOut true. This is the
// IEEE 802.3 polynomial in its reflected table form.
func Custom(buf []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range buf {
		crc = tableProfileCustom[byte(crc)^b] ^ (crc >> 8)
	}
	return crc ^ 0xFFFFFFFF
}
