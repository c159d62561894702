package smali

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Image container format: a fixed header followed by length-prefixed
// class records, each a canonically encoded CBOR Class.
//
//	magic   "DXIM"   4 bytes
//	version uint16   big-endian
//	count   uint32   big-endian
//	records count x (uint32 length, record bytes)
const (
	imageMagic   = "DXIM"
	imageVersion = 1
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("smali: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// decodeImage parses image bytes into the ordered class pool. Each
// class keeps its record bytes so re-encoding is byte-stable.
func decodeImage(data []byte) ([]*Class, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, len(imageMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("truncated header: %w", err)
	}
	if string(magic) != imageMagic {
		return nil, fmt.Errorf("bad magic %q", magic)
	}
	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("truncated header: %w", err)
	}
	if version != imageVersion {
		return nil, fmt.Errorf("unsupported image version %d", version)
	}
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("truncated header: %w", err)
	}

	classes := make([]*Class, 0, count)
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, fmt.Errorf("record %d: truncated length: %w", i, err)
		}
		record := make([]byte, n)
		if _, err := io.ReadFull(r, record); err != nil {
			return nil, fmt.Errorf("record %d: truncated body: %w", i, err)
		}
		var c Class
		if err := cbor.Unmarshal(record, &c); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if c.ClassName == "" {
			return nil, fmt.Errorf("record %d: missing class name", i)
		}
		c.raw = record
		classes = append(classes, &c)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %d records", r.Len(), count)
	}
	return classes, nil
}

// encodeImage serializes a class pool. Classes still carrying their
// decoded record bytes are written back verbatim; assembled classes
// are encoded canonically.
func encodeImage(classes []*Class) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(imageMagic)
	binary.Write(&buf, binary.BigEndian, uint16(imageVersion))
	binary.Write(&buf, binary.BigEndian, uint32(len(classes)))

	for _, c := range classes {
		record := c.raw
		if record == nil {
			encoded, err := cborEncMode.Marshal(c)
			if err != nil {
				return nil, fmt.Errorf("encoding %s: %w", c.ClassName, err)
			}
			record = encoded
		}
		binary.Write(&buf, binary.BigEndian, uint32(len(record)))
		buf.Write(record)
	}
	return buf.Bytes(), nil
}
