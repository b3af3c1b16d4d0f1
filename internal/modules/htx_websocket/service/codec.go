package service

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

const maxFrameSize = 8 << 20

var (
	errUnknownFrame = errors.New("htx ws: frame is neither compressed nor json")
	// ErrFrameTooLarge распакованный кадр больше maxFrameSize.
	ErrFrameTooLarge = errors.New("htx ws: inflated frame exceeds size limit")
)

// Inflate gzip (публичный стрим) или zlib (приватный); открытый JSON отдаётся как есть.
func Inflate(frame []byte) ([]byte, error) {
	trimmed := bytes.TrimLeft(frame, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errUnknownFrame
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed, nil
	}

	var (
		r   io.ReadCloser
		err error
	)
	switch {
	case len(frame) >= 2 && frame[0] == 0x1f && frame[1] == 0x8b:
		r, err = gzip.NewReader(bytes.NewReader(frame))
	case len(frame) >= 2 && frame[0]&0x0f == 0x08 && (uint16(frame[0])<<8|uint16(frame[1]))%31 == 0:
		r, err = zlib.NewReader(bytes.NewReader(frame))
	default:
		return nil, errUnknownFrame
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxFrameSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return out, nil
}
