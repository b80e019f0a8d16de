package chain

import (
	"fmt"

	"github.com/machinepulse/machinepulse/internal/record"
)

// Transform adapts a record on the edge between two stages.
type Transform func(record.Record) (record.Record, error)

// Identity passes the record through unchanged. Every edge starts with it.
func Identity(rec record.Record) (record.Record, error) { return rec, nil }

// Project returns a transform that keeps only the named keys of a Result.
// Non-Result records pass through unchanged.
func Project(keys ...string) Transform {
	return func(rec record.Record) (record.Record, error) {
		in, ok := rec.(*record.Result)
		if !ok {
			return rec, nil
		}
		out := record.NewResult(in.DeviceID, in.Timestamp)
		for _, k := range keys {
			v, ok := in.Values[k]
			if !ok {
				return nil, fmt.Errorf("project: result missing key %q", k)
			}
			out.Values[k] = v
		}
		return out, nil
	}
}
