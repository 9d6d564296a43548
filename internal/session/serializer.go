package session

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	markerPlain byte = 0
	markerGzip  byte = 1
)

// Serializer encodes sessions as MessagePack, gzipped above a threshold.
// The first byte marks whether the payload is compressed.
type Serializer struct {
	CompressionThreshold int
}

func NewSerializer() *Serializer {
	return &Serializer{CompressionThreshold: 1024}
}

func (s *Serializer) Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	if s.CompressionThreshold > 0 && len(data) >= s.CompressionThreshold {
		var buf bytes.Buffer
		buf.WriteByte(markerGzip)
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return nil, err
		}
		if err := gz.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return append([]byte{markerPlain}, data...), nil
}

func (s *Serializer) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return ErrInvalidData
	}
	payload := data[1:]
	switch data[0] {
	case markerPlain:
	case markerGzip:
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return err
		}
		defer gz.Close()
		if payload, err = io.ReadAll(gz); err != nil {
			return err
		}
	default:
		return ErrInvalidData
	}
	return msgpack.Unmarshal(payload, v)
}
