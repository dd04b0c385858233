package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// Vectors are stored as zstd-compressed little-endian float32 blobs.
// The encoder and decoder are concurrency safe and shared.
var (
	vecEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	vecDecoder, _ = zstd.NewReader(nil)
)

// EncodeVector compresses an embedding vector for storage.
func EncodeVector(vec []float32) []byte {
	raw := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return vecEncoder.EncodeAll(raw, nil)
}

// DecodeVector decompresses a stored embedding vector.
func DecodeVector(blob []byte) ([]float32, error) {
	raw, err := vecDecoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress vector: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}
