package h2headers

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gospider007/tools"
	"golang.org/x/net/http2/hpack"
)

const (
	initialHeaderTableSize = 4096
	defaultMaxFrameSize    = 16384
)

// Block is one decoded header block: the ordered field list plus the frame
// flags the translation layer cares about.
type Block struct {
	Fields    []hpack.HeaderField
	StreamID  uint32
	EndStream bool
}

func (obj *Block) Request() (*Request, error) {
	return DecodeRequest(obj.Fields, obj.EndStream)
}

func (obj *Block) Response() (*Response, error) {
	return DecodeResponse(obj.Fields, obj.EndStream)
}

func (obj *Block) Trailers() (*Trailers, error) {
	return DecodeTrailers(obj.Fields)
}

// BlockReader reads header blocks off a frame stream: one HEADERS frame
// plus any CONTINUATION frames through END_HEADERS, hpack-decoded into an
// ordered field list. It owns the hpack dynamic table, so blocks from one
// peer must all pass through the same reader.
type BlockReader struct {
	r          io.Reader
	dec        *hpack.Decoder
	getReadBuf func(size uint32) []byte
	readBuf    []byte
	headerBuf  [frameHeaderLen]byte
}

func NewBlockReader(r io.Reader) *BlockReader {
	br := &BlockReader{
		r:   r,
		dec: hpack.NewDecoder(initialHeaderTableSize, nil),
	}
	br.getReadBuf = func(size uint32) []byte {
		if cap(br.readBuf) >= int(size) {
			return br.readBuf[:size]
		}
		br.readBuf = make([]byte, size)
		return br.readBuf
	}
	return br
}

// SetMaxDynamicTableSize applies a peer SETTINGS_HEADER_TABLE_SIZE update
// to the decoder.
func (br *BlockReader) SetMaxDynamicTableSize(v uint32) {
	br.dec.SetMaxDynamicTableSize(v)
}

func (br *BlockReader) readFrame() (frameHeader, []byte, error) {
	fh, err := readFrameHeader(br.headerBuf[:], br.r)
	if err != nil {
		return frameHeader{}, nil, err
	}
	payload := br.getReadBuf(fh.Length)
	if _, err := io.ReadFull(br.r, payload); err != nil {
		return frameHeader{}, nil, err
	}
	return fh, payload, nil
}

func (br *BlockReader) ReadBlock() (*Block, error) {
	fh, payload, err := br.readFrame()
	if err != nil {
		return nil, err
	}
	if fh.Type != frameTypeHeaders {
		return nil, fmt.Errorf("expected HEADERS frame, got %s", frameTypeName(fh.Type))
	}
	hf, err := parseHeadersFrame(fh, payload)
	if err != nil {
		return nil, tools.WrapError(err, "parseHeadersFrame")
	}
	block := &Block{
		StreamID:  hf.StreamID,
		EndStream: hf.StreamEnded(),
	}
	br.dec.SetEmitEnabled(true)
	br.dec.SetEmitFunc(func(f hpack.HeaderField) {
		block.Fields = append(block.Fields, f)
	})
	defer func() {
		br.dec.SetEmitEnabled(false)
		br.dec.SetEmitFunc(nil)
	}()
	var hc headersEnder = hf
	for {
		if _, err := br.dec.Write(hc.HeaderBlockFragment()); err != nil {
			return nil, tools.WrapError(err, "decodeFragment")
		}
		if hc.HeadersEnded() {
			break
		}
		ch, payload, err := br.readFrame()
		if err != nil {
			return nil, err
		}
		if ch.Type != frameTypeContinuation {
			return nil, fmt.Errorf("expected CONTINUATION frame, got %s", frameTypeName(ch.Type))
		}
		if ch.StreamID != hf.StreamID {
			return nil, errors.New("CONTINUATION frame on the wrong stream")
		}
		cf, err := parseContinuationFrame(ch, payload)
		if err != nil {
			return nil, tools.WrapError(err, "parseContinuationFrame")
		}
		hc = cf
	}
	if err := br.dec.Close(); err != nil {
		return nil, tools.WrapError(err, "decodeClose")
	}
	return block, nil
}

// ReadRequest is ReadBlock followed by DecodeRequest.
func (br *BlockReader) ReadRequest() (*Request, uint32, error) {
	block, err := br.ReadBlock()
	if err != nil {
		return nil, 0, err
	}
	req, err := block.Request()
	if err != nil {
		return nil, 0, err
	}
	return req, block.StreamID, nil
}

func (br *BlockReader) ReadResponse() (*Response, uint32, error) {
	block, err := br.ReadBlock()
	if err != nil {
		return nil, 0, err
	}
	resp, err := block.Response()
	if err != nil {
		return nil, 0, err
	}
	return resp, block.StreamID, nil
}

func (br *BlockReader) ReadTrailers() (*Trailers, uint32, error) {
	block, err := br.ReadBlock()
	if err != nil {
		return nil, 0, err
	}
	trailers, err := block.Trailers()
	if err != nil {
		return nil, 0, err
	}
	return trailers, block.StreamID, nil
}

// BlockWriter hpack-encodes field lists and writes them as HEADERS plus
// CONTINUATION frames, chunked at MaxFrameSize. Like the reader it owns the
// hpack dynamic table for its peer.
type BlockWriter struct {
	fw   frameWriter
	enc  *hpack.Encoder
	hbuf bytes.Buffer

	MaxFrameSize int
}

func NewBlockWriter(w io.Writer) *BlockWriter {
	bw := &BlockWriter{MaxFrameSize: defaultMaxFrameSize}
	bw.fw.w = w
	bw.enc = hpack.NewEncoder(&bw.hbuf)
	return bw
}

func (bw *BlockWriter) SetMaxDynamicTableSize(v uint32) {
	bw.enc.SetMaxDynamicTableSize(v)
}

func (bw *BlockWriter) WriteBlock(streamID uint32, endStream bool, fields []hpack.HeaderField) error {
	bw.hbuf.Reset()
	for _, hf := range fields {
		if err := bw.enc.WriteField(hf); err != nil {
			return tools.WrapError(err, "WriteField")
		}
	}
	maxFrameSize := bw.MaxFrameSize
	if maxFrameSize < 1 {
		maxFrameSize = defaultMaxFrameSize
	}
	hdrs := bw.hbuf.Bytes()
	first := true
	for first || len(hdrs) > 0 {
		chunk := hdrs
		if len(chunk) > maxFrameSize {
			chunk = chunk[:maxFrameSize]
		}
		hdrs = hdrs[len(chunk):]
		endHeaders := len(hdrs) == 0
		var err error
		if first {
			err = bw.fw.writeHeaders(streamID, chunk, endStream, endHeaders)
			first = false
		} else {
			err = bw.fw.writeContinuation(streamID, chunk, endHeaders)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (bw *BlockWriter) WriteRequest(streamID uint32, req *Request) error {
	return bw.WriteBlock(streamID, !req.HasBody, EncodeRequest(req))
}

func (bw *BlockWriter) WriteResponse(streamID uint32, resp *Response) error {
	return bw.WriteBlock(streamID, !resp.HasBody, EncodeResponse(resp))
}

// WriteTrailers always sets END_STREAM: a trailer block terminates the
// stream by definition.
func (bw *BlockWriter) WriteTrailers(streamID uint32, trailers *Trailers) error {
	return bw.WriteBlock(streamID, true, trailers.Headers)
}
