package h2headers

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const frameHeaderLen = 9

type frameType uint8

const (
	frameTypeHeaders      frameType = 0x1
	frameTypeContinuation frameType = 0x9
)

type frameFlags uint8

func (f frameFlags) Has(v frameFlags) bool {
	return (f & v) == v
}

const (
	flagHeadersEndStream  frameFlags = 0x1
	flagHeadersEndHeaders frameFlags = 0x4
	flagHeadersPadded     frameFlags = 0x8
	flagHeadersPriority   frameFlags = 0x20

	flagContinuationEndHeaders frameFlags = 0x4
)

type frameHeader struct {
	Type     frameType
	Flags    frameFlags
	Length   uint32
	StreamID uint32
}

func readFrameHeader(buf []byte, r io.Reader) (frameHeader, error) {
	_, err := io.ReadFull(r, buf[:frameHeaderLen])
	if err != nil {
		return frameHeader{}, err
	}
	return frameHeader{
		Length:   (uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])),
		Type:     frameType(buf[3]),
		Flags:    frameFlags(buf[4]),
		StreamID: binary.BigEndian.Uint32(buf[5:]) & (1<<31 - 1),
	}, nil
}

type headersFrame struct {
	frameHeader
	headerFragBuf []byte
}

func (f *headersFrame) HeadersEnded() bool {
	return f.frameHeader.Flags.Has(flagHeadersEndHeaders)
}

func (f *headersFrame) StreamEnded() bool {
	return f.frameHeader.Flags.Has(flagHeadersEndStream)
}

func (f *headersFrame) HeaderBlockFragment() []byte {
	return f.headerFragBuf
}

// parseHeadersFrame strips padding and the optional priority section; the
// block codec only wants the fragment.
func parseHeadersFrame(fh frameHeader, p []byte) (_ *headersFrame, err error) {
	if fh.StreamID == 0 {
		return nil, errors.New("HEADERS frame with stream ID 0")
	}
	hf := &headersFrame{
		frameHeader: fh,
	}
	var padLength uint8
	if fh.Flags.Has(flagHeadersPadded) {
		if p, padLength, err = readFrameByte(p); err != nil {
			return
		}
	}
	if fh.Flags.Has(flagHeadersPriority) {
		if len(p) < 5 {
			return nil, io.ErrUnexpectedEOF
		}
		p = p[5:]
	}
	if len(p)-int(padLength) < 0 {
		return nil, errors.New("frame_headers_pad_too_big")
	}
	hf.headerFragBuf = p[:len(p)-int(padLength)]
	return hf, nil
}

type continuationFrame struct {
	frameHeader
	headerFragBuf []byte
}

func (f *continuationFrame) HeadersEnded() bool {
	return f.frameHeader.Flags.Has(flagContinuationEndHeaders)
}

func (f *continuationFrame) HeaderBlockFragment() []byte {
	return f.headerFragBuf
}

func parseContinuationFrame(fh frameHeader, p []byte) (*continuationFrame, error) {
	if fh.StreamID == 0 {
		return nil, errors.New("CONTINUATION frame with stream ID 0")
	}
	return &continuationFrame{fh, p}, nil
}

func readFrameByte(p []byte) (remain []byte, b byte, err error) {
	if len(p) == 0 {
		return nil, 0, io.ErrUnexpectedEOF
	}
	return p[1:], p[0], nil
}

type headersEnder interface {
	HeadersEnded() bool
	HeaderBlockFragment() []byte
}

type frameWriter struct {
	w    io.Writer
	wbuf []byte
}

func (f *frameWriter) startWrite(ftype frameType, flags frameFlags, streamID uint32) {
	f.wbuf = append(f.wbuf[:0],
		0,
		0,
		0,
		byte(ftype),
		byte(flags),
		byte(streamID>>24),
		byte(streamID>>16),
		byte(streamID>>8),
		byte(streamID))
}

func (f *frameWriter) endWrite() error {
	length := len(f.wbuf) - frameHeaderLen
	if length >= (1 << 24) {
		return errors.New("h2headers: frame too large")
	}
	_ = append(f.wbuf[:0],
		byte(length>>16),
		byte(length>>8),
		byte(length))

	n, err := f.w.Write(f.wbuf)
	if err == nil && n != len(f.wbuf) {
		err = io.ErrShortWrite
	}
	return err
}

func (f *frameWriter) writeHeaders(streamID uint32, fragment []byte, endStream, endHeaders bool) error {
	var flags frameFlags
	if endStream {
		flags |= flagHeadersEndStream
	}
	if endHeaders {
		flags |= flagHeadersEndHeaders
	}
	f.startWrite(frameTypeHeaders, flags, streamID)
	f.wbuf = append(f.wbuf, fragment...)
	return f.endWrite()
}

func (f *frameWriter) writeContinuation(streamID uint32, fragment []byte, endHeaders bool) error {
	var flags frameFlags
	if endHeaders {
		flags |= flagContinuationEndHeaders
	}
	f.startWrite(frameTypeContinuation, flags, streamID)
	f.wbuf = append(f.wbuf, fragment...)
	return f.endWrite()
}

func frameTypeName(t frameType) string {
	switch t {
	case frameTypeHeaders:
		return "HEADERS"
	case frameTypeContinuation:
		return "CONTINUATION"
	default:
		return fmt.Sprintf("0x%x", uint8(t))
	}
}
