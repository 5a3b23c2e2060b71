package relay

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

// ErrMalformed is returned when a buffer is not a valid relay list.
var ErrMalformed = errors.New("malformed relay list")

// Field slots, in relay.fbs declaration order.
const (
	slotPeerID = iota
	slotAddrs
	slotAlias
	slotLastSeen
	slotHealthScore
	recordFields
)

const (
	slotRecords = iota
	listFields
)

// Encode serializes infos, in order, as a RelayList flatbuffer.
func Encode(infos []Info) []byte {
	builder := flatbuffers.NewBuilder(256)

	records := make([]flatbuffers.UOffsetT, len(infos))
	for i, info := range infos {
		records[i] = buildRecord(builder, info)
	}

	recordsVec := buildOffsetVector(builder, records)

	builder.StartObject(listFields)
	builder.PrependUOffsetTSlot(slotRecords, recordsVec, 0)
	list := builder.EndObject()

	builder.Finish(list)

	return builder.FinishedBytes()
}

// buildRecord writes one RelayRecord table and returns its offset.
func buildRecord(builder *flatbuffers.Builder, info Info) flatbuffers.UOffsetT {
	// Strings and vectors must be written before the table starts.
	peerID := builder.CreateString(info.PeerID)

	addrs := make([]flatbuffers.UOffsetT, len(info.Addrs))
	for i, a := range info.Addrs {
		addrs[i] = builder.CreateString(a)
	}
	addrsVec := buildOffsetVector(builder, addrs)

	var alias flatbuffers.UOffsetT
	if info.Alias != "" {
		alias = builder.CreateString(info.Alias)
	}

	builder.StartObject(recordFields)
	builder.PrependUOffsetTSlot(slotPeerID, peerID, 0)
	builder.PrependUOffsetTSlot(slotAddrs, addrsVec, 0)
	if alias != 0 {
		builder.PrependUOffsetTSlot(slotAlias, alias, 0)
	}
	builder.PrependUint64Slot(slotLastSeen, info.LastSeen, 0)
	builder.PrependFloat32Slot(slotHealthScore, info.HealthScore, 0)

	return builder.EndObject()
}

// buildOffsetVector writes a vector of offsets, preserving order.
func buildOffsetVector(builder *flatbuffers.Builder, offsets []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	builder.StartVector(flatbuffers.SizeUOffsetT, len(offsets), flatbuffers.SizeUOffsetT)

	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}

	return builder.EndVector(len(offsets))
}

// Decode parses a RelayList flatbuffer produced by Encode.
func Decode(buf []byte) (infos []Info, err error) {
	if len(buf) < 2*flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(buf))
	}

	// Out-of-range offsets in a hostile buffer surface as index panics.
	defer func() {
		if r := recover(); r != nil {
			infos, err = nil, fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	list := rootTable(buf)

	o := fieldOffset(&list, slotRecords)
	if o == 0 {
		return []Info{}, nil
	}

	n := list.VectorLen(o)
	if n > len(buf)/flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d records in %d bytes", ErrMalformed, n, len(buf))
	}

	start := list.Vector(o)
	infos = make([]Info, n)

	for i := 0; i < n; i++ {
		elem := start + flatbuffers.UOffsetT(i*flatbuffers.SizeUOffsetT)
		rec := flatbuffers.Table{Bytes: buf, Pos: list.Indirect(elem)}
		infos[i] = readRecord(&rec)
	}

	return infos, nil
}

// readRecord extracts an Info from a RelayRecord table.
func readRecord(t *flatbuffers.Table) Info {
	var info Info

	if o := fieldOffset(t, slotPeerID); o != 0 {
		info.PeerID = t.String(o + t.Pos)
	}

	info.Addrs = []string{}
	if o := fieldOffset(t, slotAddrs); o != 0 {
		n := t.VectorLen(o)
		if n > len(t.Bytes)/flatbuffers.SizeUOffsetT {
			panic(fmt.Sprintf("%d addrs in %d bytes", n, len(t.Bytes)))
		}

		start := t.Vector(o)
		info.Addrs = make([]string, n)

		for i := 0; i < n; i++ {
			info.Addrs[i] = t.String(start + flatbuffers.UOffsetT(i*flatbuffers.SizeUOffsetT))
		}
	}

	if o := fieldOffset(t, slotAlias); o != 0 {
		info.Alias = t.String(o + t.Pos)
	}

	if o := fieldOffset(t, slotLastSeen); o != 0 {
		info.LastSeen = t.GetUint64(o + t.Pos)
	}

	if o := fieldOffset(t, slotHealthScore); o != 0 {
		info.HealthScore = t.GetFloat32(o + t.Pos)
	}

	return info
}

// rootTable returns the root table of a finished buffer.
func rootTable(buf []byte) flatbuffers.Table {
	n := flatbuffers.GetUOffsetT(buf)
	return flatbuffers.Table{Bytes: buf, Pos: n}
}

// fieldOffset returns the table-relative offset of slot, or 0 if absent.
func fieldOffset(t *flatbuffers.Table, slot int) flatbuffers.UOffsetT {
	vt := flatbuffers.VOffsetT((slot + 2) * flatbuffers.SizeVOffsetT)
	return flatbuffers.UOffsetT(t.Offset(vt))
}
