package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net/http"

	"github.com/golang/snappy"
)

func init() {
	// Ensure http.Header is registered for gob.
	gob.Register(http.Header{})
}

// encodeResponse 使用 gob 序列化快照后再以 snappy 压缩，HTML 文档通常可压缩到 1/3。
func encodeResponse(resp *Response) ([]byte, error) {
	if resp == nil {
		return nil, ErrNilResponse
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(resp); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return snappy.Encode(nil, buf.Bytes()), nil
}

func decodeResponse(b []byte) (*Response, error) {
	raw, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, fmt.Errorf("decompress response: %w", err)
	}
	var resp Response
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	return &resp, nil
}
