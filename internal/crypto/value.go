package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// EncryptedValue is the on-disk form of a classified field. The algorithm
// class is stored alongside the payload so a misconfigured migration is
// detectable at decrypt time. RangePrefix is only present for range-class
// fields; it is a fixed-width hex encoding whose lexicographic order
// matches the plaintext order.
type EncryptedValue struct {
	Class       Class  `json:"c"`
	Payload     []byte `json:"p"`
	RangePrefix string `json:"r,omitempty"`
}

func serializeValue(spec FieldSpec, value any) ([]byte, error) {
	switch spec.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return []byte(s), nil
	case KindStringList:
		list, ok := value.([]string)
		if !ok {
			return nil, fmt.Errorf("expected []string, got %T", value)
		}
		return json.Marshal(list)
	case KindTime:
		t, ok := value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected time.Time, got %T", value)
		}
		return []byte(t.UTC().Format(time.RFC3339Nano)), nil
	default:
		return nil, fmt.Errorf("unknown field kind %q", spec.Kind)
	}
}

func deserializeValue(spec FieldSpec, data []byte) (any, error) {
	switch spec.Kind {
	case KindString:
		return string(data), nil
	case KindStringList:
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	case KindTime:
		t, err := time.Parse(time.RFC3339Nano, string(data))
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown field kind %q", spec.Kind)
	}
}

// rangePrefix encodes an orderable plaintext as 16 lowercase hex chars.
// int64 order is preserved by flipping the sign bit before the big-endian
// encode, so ciphertext comparison works in the store's collation.
func rangePrefix(spec FieldSpec, value any) (string, error) {
	var v int64
	switch spec.Kind {
	case KindTime:
		t, ok := value.(time.Time)
		if !ok {
			return "", fmt.Errorf("expected time.Time, got %T", value)
		}
		v = t.UTC().Unix()
	default:
		return "", fmt.Errorf("kind %q does not support range encryption", spec.Kind)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v)^(1<<63))
	return hex.EncodeToString(buf[:]), nil
}
