package command

import (
	"bytes"

	"github.com/ugorji/go/codec"

	tserr "github.com/ledgerwatch/tscore/errors"
)

var jsonHandle = &codec.JsonHandle{}

// bulkWireItem is ADDBULK/INGEST's wire shape: either a pair of
// parallel arrays or an explicit list of {ts,val} objects — both forms
// appear across the corpus' bulk-ingest clients, so DecodeBulkPayload
// accepts either.
type bulkWireItem struct {
	Timestamps []int64   `codec:"timestamps"`
	Values     []float64 `codec:"values"`
	Samples    []struct {
		TS  int64   `codec:"ts"`
		Val float64 `codec:"val"`
	} `codec:"samples"`
}

// DecodeBulkPayload parses an ADDBULK/INGEST JSON body into a
// BulkPayload ready for AddBulk.
func DecodeBulkPayload(body []byte) (BulkPayload, error) {
	var wire bulkWireItem
	dec := codec.NewDecoderBytes(body, jsonHandle)
	if err := dec.Decode(&wire); err != nil {
		return BulkPayload{}, tserr.Wrap(tserr.ParseError, err)
	}
	if len(wire.Samples) > 0 {
		payload := BulkPayload{
			Timestamps: make([]int64, len(wire.Samples)),
			Values:     make([]float64, len(wire.Samples)),
		}
		for i, s := range wire.Samples {
			payload.Timestamps[i] = s.TS
			payload.Values[i] = s.Val
		}
		return payload, nil
	}
	return BulkPayload{Timestamps: wire.Timestamps, Values: wire.Values}, nil
}

// wireMAddItem is one entry of MADDBULK's JSON array body.
type wireMAddItem struct {
	Key     string  `codec:"key"`
	Payload bulkWireItem
}

// DecodeMAddBulkPayload parses MADDBULK's JSON array body (one bulk
// payload per key) into per-key BulkPayloads, preserving array order.
func DecodeMAddBulkPayload(body []byte) ([]string, []BulkPayload, error) {
	var raw []map[string]interface{}
	dec := codec.NewDecoderBytes(body, jsonHandle)
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, tserr.Wrap(tserr.ParseError, err)
	}

	keys := make([]string, 0, len(raw))
	payloads := make([]BulkPayload, 0, len(raw))
	for _, entry := range raw {
		key, _ := entry["key"].(string)
		reencoded, err := reencode(entry)
		if err != nil {
			return nil, nil, err
		}
		payload, err := DecodeBulkPayload(reencoded)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		payloads = append(payloads, payload)
	}
	return keys, payloads, nil
}

func reencode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, jsonHandle)
	if err := enc.Encode(v); err != nil {
		return nil, tserr.Wrap(tserr.ParseError, err)
	}
	return buf.Bytes(), nil
}
