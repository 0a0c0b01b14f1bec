package protov1

import (
	"errors"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrEmptyWrapper is returned when a MessageWrapper carries no event.
var ErrEmptyWrapper = errors.New("message wrapper has no event")

// Encoding helpers follow proto3 rules: scalar zero values and empty
// byte/string fields are omitted, optional fields are written when set.

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendOptionalUint64(b []byte, num protowire.Number, v *uint64) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, *v)
}

func appendOptionalInt64(b []byte, num protowire.Number, v *int64) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(*v))
}

func appendOptionalUint32(b []byte, num protowire.Number, v *uint32) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(*v))
}

func appendOptionalDouble(b []byte, num protowire.Number, v *float64) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(*v))
}

func appendRepeatedBytes(b []byte, num protowire.Number, vs [][]byte) []byte {
	for _, v := range vs {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, v)
	}
	return b
}

func appendRepeatedString(b []byte, num protowire.Number, vs []string) []byte {
	for _, v := range vs {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return b
}

func appendPackedUint64(b []byte, num protowire.Number, vs []uint64) []byte {
	if len(vs) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, v)
	}
	return appendMessageField(b, num, packed)
}

func appendPackedUint32(b []byte, num protowire.Number, vs []uint32) []byte {
	if len(vs) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	return appendMessageField(b, num, packed)
}

func appendPackedBool(b []byte, num protowire.Number, vs []bool) []byte {
	if len(vs) == 0 {
		return b
	}
	packed := make([]byte, 0, len(vs))
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, protowire.EncodeBool(v))
	}
	return appendMessageField(b, num, packed)
}

// fieldFunc consumes the value of one field and reports how many bytes it
// used. Returning 0 marks the field as unknown so it is skipped.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func decodeMessage(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

type unmarshaler interface {
	Unmarshal(b []byte) error
}

func cloneBytes(v []byte) []byte {
	if len(v) == 0 {
		return nil
	}
	return append([]byte(nil), v...)
}

func readUint64(typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n > 0 {
		*dst = v
	}
	return n
}

func readUint32(typ protowire.Type, b []byte, dst *uint32) int {
	var v uint64
	n := readUint64(typ, b, &v)
	if n > 0 {
		*dst = uint32(v)
	}
	return n
}

func readInt64(typ protowire.Type, b []byte, dst *int64) int {
	var v uint64
	n := readUint64(typ, b, &v)
	if n > 0 {
		*dst = int64(v)
	}
	return n
}

func readBool(typ protowire.Type, b []byte, dst *bool) int {
	var v uint64
	n := readUint64(typ, b, &v)
	if n > 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}

func readOptionalUint64(typ protowire.Type, b []byte, dst **uint64) int {
	var v uint64
	n := readUint64(typ, b, &v)
	if n > 0 {
		*dst = &v
	}
	return n
}

func readOptionalInt64(typ protowire.Type, b []byte, dst **int64) int {
	var v int64
	n := readInt64(typ, b, &v)
	if n > 0 {
		*dst = &v
	}
	return n
}

func readOptionalUint32(typ protowire.Type, b []byte, dst **uint32) int {
	var v uint32
	n := readUint32(typ, b, &v)
	if n > 0 {
		*dst = &v
	}
	return n
}

func readOptionalDouble(typ protowire.Type, b []byte, dst **float64) int {
	if typ != protowire.Fixed64Type {
		return 0
	}
	v, n := protowire.ConsumeFixed64(b)
	if n > 0 {
		f := math.Float64frombits(v)
		*dst = &f
	}
	return n
}

func readBytes(typ protowire.Type, b []byte, dst *[]byte) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeBytes(b)
	if n > 0 {
		*dst = cloneBytes(v)
	}
	return n
}

func readString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeBytes(b)
	if n > 0 {
		*dst = string(v)
	}
	return n
}

func readRepeatedBytes(typ protowire.Type, b []byte, dst *[][]byte) int {
	var v []byte
	n := readBytes(typ, b, &v)
	if n > 0 {
		*dst = append(*dst, v)
	}
	return n
}

func readRepeatedString(typ protowire.Type, b []byte, dst *[]string) int {
	var v string
	n := readString(typ, b, &v)
	if n > 0 {
		*dst = append(*dst, v)
	}
	return n
}

// readPackedVarints accepts both packed and unpacked encodings of a
// repeated varint field and hands each element to add.
func readPackedVarints(typ protowire.Type, b []byte, add func(uint64)) int {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n > 0 {
			add(v)
		}
		return n
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return m
			}
			add(v)
			packed = packed[m:]
		}
		return n
	default:
		return 0
	}
}

func readRepeatedUint64(typ protowire.Type, b []byte, dst *[]uint64) int {
	return readPackedVarints(typ, b, func(v uint64) { *dst = append(*dst, v) })
}

func readRepeatedUint32(typ protowire.Type, b []byte, dst *[]uint32) int {
	return readPackedVarints(typ, b, func(v uint64) { *dst = append(*dst, uint32(v)) })
}

func readRepeatedBool(typ protowire.Type, b []byte, dst *[]bool) int {
	return readPackedVarints(typ, b, func(v uint64) { *dst = append(*dst, protowire.DecodeBool(v)) })
}

func readMessage(typ protowire.Type, b []byte, msg unmarshaler) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, msg.Unmarshal(v)
}
