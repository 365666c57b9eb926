package workcache

import (
	"encoding/json"

	"github.com/ironforge-pool/poolcoordinator/internal/header"
)

// wireHeader mirrors header.Header but surfaces Extra for JSON round-trip;
// header.Header itself hides Extra from its default encoding since the core
// only ever inspects the named fields.
type wireHeader struct {
	PreviousBlockHash string          `json:"previousBlockHash"`
	Target            string          `json:"target"`
	Timestamp         int64           `json:"timestamp"`
	Randomness        string          `json:"randomness"`
	Graffiti          string          `json:"graffiti"`
	Extra             json.RawMessage `json:"extra,omitempty"`
}

func marshalTemplate(h header.Header) ([]byte, error) {
	return json.Marshal(wireHeader{
		PreviousBlockHash: h.PreviousBlockHash,
		Target:            h.Target,
		Timestamp:         h.Timestamp,
		Randomness:        h.Randomness,
		Graffiti:          h.Graffiti,
		Extra:             h.Extra,
	})
}

func unmarshalTemplate(b []byte) (header.Header, error) {
	var w wireHeader
	if err := json.Unmarshal(b, &w); err != nil {
		return header.Header{}, err
	}
	return header.Header{
		PreviousBlockHash: w.PreviousBlockHash,
		Target:            w.Target,
		Timestamp:         w.Timestamp,
		Randomness:        w.Randomness,
		Graffiti:          w.Graffiti,
		Extra:             w.Extra,
	}, nil
}
