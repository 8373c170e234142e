// Package tfevent reads and writes TensorBoard-compatible event logs:
// directories of append-only files holding length-prefixed, CRC-guarded
// records, each record a serialized tf.Event protobuf.
package tfevent

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// ErrChecksum reports a record whose stored CRC does not match its
// contents.
var ErrChecksum = errors.New("tfevent: record checksum mismatch")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// maskedCRC computes the masked CRC-32C used by the TFRecord format:
// the checksum is rotated right by 15 bits and offset by a constant so
// that checksums of checksums stay well distributed.
func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoli)
	return ((c >> 15) | (c << 17)) + 0xa282ead8
}

// writeRecord frames a payload as a TFRecord:
//
//	uint64 length, uint32 maskedCRC(length), payload, uint32 maskedCRC(payload)
//
// all fixed-width fields little-endian.
func writeRecord(w io.Writer, payload []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("tfevent: write record header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("tfevent: write record payload: %w", err)
	}
	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(payload))
	if _, err := w.Write(footer[:]); err != nil {
		return fmt.Errorf("tfevent: write record footer: %w", err)
	}
	return nil
}

// readRecord reads one framed record. It returns io.EOF at a clean file
// end, io.ErrUnexpectedEOF when the file ends mid-record (a live file
// being appended to), and ErrChecksum on corruption.
func readRecord(r io.Reader) ([]byte, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		return nil, fmt.Errorf("tfevent: read record header: %w", err)
	}
	length := binary.LittleEndian.Uint64(header[:8])
	if got := binary.LittleEndian.Uint32(header[8:]); got != maskedCRC(header[:8]) {
		return nil, fmt.Errorf("%w (length field)", ErrChecksum)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("tfevent: read record payload: %w", err)
	}
	var footer [4]byte
	if _, err := io.ReadFull(r, footer[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("tfevent: read record footer: %w", err)
	}
	if got := binary.LittleEndian.Uint32(footer[:]); got != maskedCRC(payload) {
		return nil, fmt.Errorf("%w (payload)", ErrChecksum)
	}
	return payload, nil
}
