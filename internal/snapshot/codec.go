// Package snapshot implements the engine's persisted-state wire format
// (C10, spec.md §6): a length-prefixed, version-tagged binary blob
// covering the instrument catalog, every daily counter's accumulated
// entries, and the dedup latch's suspended entries. Rolling-window
// counters are deliberately excluded — they re-warm from live traffic,
// matching spec.md's treatment of them as working state rather than
// durable state.
//
// The blob is zstd-compressed with klauspost/compress before being
// handed to a store for persistence, the same way the teacher's
// exchange client leans on a third-party codec rather than hand-rolling
// one.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"

	"riskengine/internal/action"
	"riskengine/internal/stats"
	"riskengine/pkg/types"
)

// Version is the current wire format tag. Encode always writes this
// value; Decode rejects any other.
const Version uint32 = 1

// State is everything the codec serializes — the full durable state of
// one engine instance at a point in time.
type State struct {
	ProductByContract  map[string]string
	ExchangeByContract map[string]string
	DailyCounters      map[string][]stats.DailyEntry // rule name -> entries
	LatchEntries       []action.Entry
}

// Encode serializes s into a zstd-compressed blob.
func Encode(s State) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint32(&buf, Version); err != nil {
		return nil, err
	}
	if err := writeStringMap(&buf, s.ProductByContract); err != nil {
		return nil, err
	}
	if err := writeStringMap(&buf, s.ExchangeByContract); err != nil {
		return nil, err
	}

	if err := writeUint32(&buf, uint32(len(s.DailyCounters))); err != nil {
		return nil, err
	}
	for name, entries := range s.DailyCounters {
		if err := writeString(&buf, name); err != nil {
			return nil, err
		}
		if err := writeDailyEntries(&buf, entries); err != nil {
			return nil, err
		}
	}

	if err := writeLatchEntries(&buf, s.LatchEntries); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(buf.Bytes(), nil), nil
}

// Decode deserializes a blob produced by Encode.
func Decode(blob []byte) (State, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return State{}, fmt.Errorf("snapshot: create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return State{}, fmt.Errorf("snapshot: zstd decompress: %w", err)
	}

	r := bytes.NewReader(raw)
	version, err := readUint32(r)
	if err != nil {
		return State{}, fmt.Errorf("snapshot: read version: %w", err)
	}
	if version != Version {
		return State{}, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, Version)
	}

	s := State{DailyCounters: make(map[string][]stats.DailyEntry)}

	if s.ProductByContract, err = readStringMap(r); err != nil {
		return State{}, fmt.Errorf("snapshot: read product map: %w", err)
	}
	if s.ExchangeByContract, err = readStringMap(r); err != nil {
		return State{}, fmt.Errorf("snapshot: read exchange map: %w", err)
	}

	numRules, err := readUint32(r)
	if err != nil {
		return State{}, fmt.Errorf("snapshot: read rule count: %w", err)
	}
	for i := uint32(0); i < numRules; i++ {
		name, err := readString(r)
		if err != nil {
			return State{}, fmt.Errorf("snapshot: read rule name: %w", err)
		}
		entries, err := readDailyEntries(r)
		if err != nil {
			return State{}, fmt.Errorf("snapshot: read daily entries for %s: %w", name, err)
		}
		s.DailyCounters[name] = entries
	}

	if s.LatchEntries, err = readLatchEntries(r); err != nil {
		return State{}, fmt.Errorf("snapshot: read latch entries: %w", err)
	}

	return s, nil
}

// ErrUnsupportedVersion is returned when Decode encounters a version
// tag it does not understand.
var ErrUnsupportedVersion = fmt.Errorf("snapshot: unsupported version")

func writeUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStringMap(w io.Writer, m map[string]string) error {
	if err := writeUint32(w, uint32(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := writeString(w, k); err != nil {
			return err
		}
		if err := writeString(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readStringMap(r io.Reader) (map[string]string, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

func writeDimensionKey(w io.Writer, dim types.DimensionKey) error {
	for _, s := range []string{dim.AccountID, dim.ContractID, dim.ProductID, dim.ExchangeID, dim.AccountGroupID} {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readDimensionKey(r io.Reader) (types.DimensionKey, error) {
	vals := make([]string, 5)
	for i := range vals {
		v, err := readString(r)
		if err != nil {
			return types.DimensionKey{}, err
		}
		vals[i] = v
	}
	return types.DimensionKey{
		AccountID:      vals[0],
		ContractID:     vals[1],
		ProductID:      vals[2],
		ExchangeID:     vals[3],
		AccountGroupID: vals[4],
	}, nil
}

func writeDailyEntries(w io.Writer, entries []stats.DailyEntry) error {
	if err := writeUint32(w, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeDimensionKey(w, e.Dim); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(e.Day)); err != nil {
			return err
		}
		if err := writeString(w, string(e.Metric)); err != nil {
			return err
		}
		if err := writeString(w, e.Value.String()); err != nil {
			return err
		}
	}
	return nil
}

func readDailyEntries(r io.Reader) ([]stats.DailyEntry, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	entries := make([]stats.DailyEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		dim, err := readDimensionKey(r)
		if err != nil {
			return nil, err
		}
		day, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		metric, err := readString(r)
		if err != nil {
			return nil, err
		}
		valueStr, err := readString(r)
		if err != nil {
			return nil, err
		}
		value, err := decimal.NewFromString(valueStr)
		if err != nil {
			return nil, fmt.Errorf("parse decimal %q: %w", valueStr, err)
		}
		entries = append(entries, stats.DailyEntry{
			Dim:    dim,
			Day:    int32(day),
			Metric: types.Metric(metric),
			Value:  value,
		})
	}
	return entries, nil
}

func writeLatchEntries(w io.Writer, entries []action.Entry) error {
	if err := writeUint32(w, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeString(w, e.Subject); err != nil {
			return err
		}
		if err := writeString(w, string(e.Family)); err != nil {
			return err
		}
		if err := writeString(w, string(e.State)); err != nil {
			return err
		}
	}
	return nil
}

func readLatchEntries(r io.Reader) ([]action.Entry, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	entries := make([]action.Entry, 0, n)
	for i := uint32(0); i < n; i++ {
		subject, err := readString(r)
		if err != nil {
			return nil, err
		}
		family, err := readString(r)
		if err != nil {
			return nil, err
		}
		state, err := readString(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, action.Entry{
			Subject: subject,
			Family:  types.ActionFamily(family),
			State:   action.State(state),
		})
	}
	return entries, nil
}
