package lode

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/partflow/types"
)

// ManifestCodec names the manifest encoding.
type ManifestCodec string

// Manifest codecs.
const (
	CodecJSON    ManifestCodec = "json"
	CodecMsgpack ManifestCodec = "msgpack"
)

// ParseManifestCodec validates a codec name. Empty means JSON.
func ParseManifestCodec(s string) (ManifestCodec, error) {
	switch ManifestCodec(s) {
	case "", CodecJSON:
		return CodecJSON, nil
	case CodecMsgpack:
		return CodecMsgpack, nil
	default:
		return "", fmt.Errorf("unknown manifest codec %q (must be json or msgpack)", s)
	}
}

// Ext returns the manifest file extension.
func (c ManifestCodec) Ext() string {
	if c == CodecMsgpack {
		return "msgpack"
	}
	return "json"
}

// Marshal encodes v.
func (c ManifestCodec) Marshal(v any) ([]byte, error) {
	if c == CodecMsgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// Unmarshal decodes data into v.
func (c ManifestCodec) Unmarshal(data []byte, v any) error {
	if c == CodecMsgpack {
		return msgpack.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// Manifest is the per-request record written after a parse terminates.
type Manifest struct {
	ManifestVersion string              `msgpack:"manifest_version" json:"manifest_version"`
	Version         string              `msgpack:"version" json:"version"`
	Request         types.RequestMeta   `msgpack:"request" json:"request"`
	CompletedAt     time.Time           `msgpack:"completed_at" json:"completed_at"`
	Outcome         types.Outcome       `msgpack:"outcome" json:"outcome"`
	BytesReceived   int64               `msgpack:"bytes_received" json:"bytes_received"`
	BytesExpected   int64               `msgpack:"bytes_expected" json:"bytes_expected"`
	Fields          []types.FieldRecord `msgpack:"fields" json:"fields"`
	Files           []types.FileRecord  `msgpack:"files" json:"files"`
}

// FileBytes returns the total size of stored files.
func (m *Manifest) FileBytes() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Size
	}
	return n
}
