package util

import (
	"encoding/binary"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
)

// Cond returns trueVal when condition holds, falseVal otherwise.
func Cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}

// CRC64 computes the CRC64-NVME checksum of data
func CRC64(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}

// Checksum returns the Base58-encoded big endian CRC64-NVME of data.
// Used for manifest entries and HTTP ETags.
func Checksum(data []byte) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], CRC64(data))
	return base58.Encode(buf[:])
}
