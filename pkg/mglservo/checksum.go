// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mglservo

// ChecksumAdditive returns the 8-bit wrapping sum of seed and every byte of data
func ChecksumAdditive(data []byte, seed uint8) uint8 {
	sum := seed
	for _, b := range data {
		sum += b
	}
	return sum
}

// ChecksumXOR returns the XOR of seed and every byte of data
func ChecksumXOR(data []byte, seed uint8) uint8 {
	x := seed
	for _, b := range data {
		x ^= b
	}
	return x
}

// payloadChecksums computes both trailing checksum bytes for a payload
func payloadChecksums(payload []byte) (uint8, uint8) {
	return ChecksumAdditive(payload, SeedAdditive), ChecksumXOR(payload, SeedXOR)
}
