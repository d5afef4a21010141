package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
)

// zstd frames start with magic number 0x28 0xB5 0x2F 0xFD
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// codec turns messages into websocket frames. Compressed frames are sent
// as binary messages; plain JSON as text.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) close() {
	c.enc.Close()
	c.dec.Close()
}

func (c *codec) marshal(v any, compress bool) (int, []byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, nil, err
	}
	if !compress {
		return websocket.TextMessage, data, nil
	}
	return websocket.BinaryMessage, c.enc.EncodeAll(data, nil), nil
}

// payload returns the JSON carried by a frame, decompressing when the
// frame carries the zstd magic.
func (c *codec) payload(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress message: %w", err)
	}
	return out, nil
}
