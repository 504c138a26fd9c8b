package embcache

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"time"

	"github.com/kailas-cloud/scorpius/internal/domain"
)

// Record layout, little-endian:
//
//	magic[4] version[1] created_unix_nano[8] model_len[2] model dim[4] float32*dim crc32[4]
//
// The checksum covers every preceding byte.
const (
	entryMagic   = "SEMB"
	entryVersion = 1
	headerSize   = 4 + 1 + 8 + 2
	trailerSize  = 4
)

// Entry is a persisted embedding.
type Entry struct {
	Vector    []float32
	CreatedAt time.Time
	Model     string
}

// encodedSize returns the record length for e without encoding it.
func encodedSize(e Entry) int {
	return headerSize + len(e.Model) + 4 + 4*len(e.Vector) + trailerSize
}

func encodeEntry(e Entry) ([]byte, error) {
	if len(e.Model) > math.MaxUint16 {
		return nil, fmt.Errorf("model name too long: %d bytes", len(e.Model))
	}

	buf := make([]byte, 0, encodedSize(e))
	buf = append(buf, entryMagic...)
	buf = append(buf, entryVersion)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.CreatedAt.UnixNano()))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.Model)))
	buf = append(buf, e.Model...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Vector)))
	for _, f := range e.Vector {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf)), nil
}

func decodeEntry(data []byte) (Entry, error) {
	if len(data) < headerSize+4+trailerSize {
		return Entry{}, corrupt("record too short: %d bytes", len(data))
	}
	if string(data[:4]) != entryMagic {
		return Entry{}, corrupt("bad magic %q", data[:4])
	}
	if data[4] != entryVersion {
		return Entry{}, corrupt("unsupported version %d", data[4])
	}

	body, sum := data[:len(data)-trailerSize], binary.LittleEndian.Uint32(data[len(data)-trailerSize:])
	if crc32.ChecksumIEEE(body) != sum {
		return Entry{}, corrupt("checksum mismatch")
	}

	pos := 5
	created := int64(binary.LittleEndian.Uint64(data[pos:]))
	pos += 8
	modelLen := int(binary.LittleEndian.Uint16(data[pos:]))
	pos += 2
	if pos+modelLen+4 > len(body) {
		return Entry{}, corrupt("model length %d overruns record", modelLen)
	}
	model := string(data[pos : pos+modelLen])
	pos += modelLen
	dim := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	if len(body)-pos != 4*dim {
		return Entry{}, corrupt("dimension %d does not match payload of %d bytes", dim, len(body)-pos)
	}

	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[pos+4*i:]))
	}

	return Entry{Vector: vec, CreatedAt: time.Unix(0, created), Model: model}, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrCacheCorruption}, args...)...)
}
