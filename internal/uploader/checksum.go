package uploader

import (
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"os"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// fileCRC32C computes the CRC32C checksum of a file's contents, encoded
// the same way AWS returns it on HeadObject: base64 of the 4-byte
// big-endian checksum.
func fileCRC32C(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return crc32cBase64(data), nil
}

func crc32cBase64(data []byte) string {
	sum := crc32.Checksum(data, castagnoli)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], sum)
	return base64.StdEncoding.EncodeToString(buf[:])
}
