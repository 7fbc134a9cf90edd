// Package contract implements the Data-Contract Mapper (C5): a closed,
// finite conversion table that turns heterogeneous persisted document
// values into a JSON-safe tree, plus detection of embedded-file shapes.
package contract

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/workflowkit/engine/internal/logger"
)

// ObjectID is a 12-byte document identifier, represented the way a
// document store's driver would hand it to application code.
type ObjectID [12]byte

// Binary is an untyped binary value with a subtype tag. Subtype 0x04
// denotes a UUID per the closed conversion table; any other subtype is
// mapped to a base64 string.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Regex carries a stored regular expression's source pattern. Only the
// pattern survives the mapping; flags are not part of the output contract.
type Regex struct {
	Pattern string
	Options string
}

// Decimal is a high-precision decimal value represented as its canonical
// string form plus a best-effort float64 for numeric consumers.
type Decimal struct {
	String string
	Float  float64
}

const uuidBinarySubtype = 0x04

// Mapper converts document values into the JSON-safe tree that flows
// across workflow edges, and detects embedded-file shapes inside object
// values. Every conversion rule is a pure function over the closed
// value-kind set; log is held only to report the fallback case below and
// may be nil.
type Mapper struct {
	log *logger.Logger
}

// New creates a Mapper. log may be nil, in which case the fallback
// conversion case is silent.
func New(log *logger.Logger) *Mapper {
	return &Mapper{log: log}
}

// Convert walks v and returns a JSON-safe equivalent per the closed
// conversion table:
//
//	Decimal        -> float64
//	time.Time      -> RFC3339 string
//	ObjectID       -> 24-char hex string
//	Binary(uuid)   -> canonical UUID string
//	Binary(other)  -> base64 string
//	Regex          -> pattern string
//	map[string]any -> recursively converted map, or *InputFile/[]*InputFile
//	                  when the embedded-file shape is detected
//	[]any          -> recursively converted slice
//	nil            -> nil
//	everything else that isn't already JSON-safe -> string via fmt.Sprintf,
//	                  with a warning logged against the value's parent key
func (m *Mapper) Convert(v interface{}) interface{} {
	return m.convert("", v)
}

// convert is Convert plus the parent key under which v was found, used
// solely to name the field in the fallback-conversion warning below; a
// top-level (non-map) value carries an empty key.
func (m *Mapper) convert(key string, v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, string, int, int32, int64, float32, float64:
		return val
	case Decimal:
		return val.Float
	case *Decimal:
		if val == nil {
			return nil
		}
		return val.Float
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case ObjectID:
		return hex.EncodeToString(val[:])
	case Binary:
		return m.convertBinary(val)
	case Regex:
		return val.Pattern
	case map[string]interface{}:
		if file, ok := detectInputFile(val); ok {
			return file
		}
		return m.convertMap(val)
	case []interface{}:
		return m.convertSlice(key, val)
	default:
		if m.log != nil {
			m.log.Warn("value has no conversion rule, falling back to string", "key", key, "type", fmt.Sprintf("%T", val))
		}
		return fmt.Sprintf("%v", val)
	}
}

func (m *Mapper) convertBinary(b Binary) interface{} {
	if b.Subtype == uuidBinarySubtype && len(b.Data) == 16 {
		id, err := uuid.FromBytes(b.Data)
		if err == nil {
			return id.String()
		}
	}
	return base64.StdEncoding.EncodeToString(b.Data)
}

func (m *Mapper) convertMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = m.convert(k, v)
	}
	return out
}

// convertSlice converts each element under the slice's own parent key, so a
// fallback conversion inside a list is still attributed to the field it
// came from.
func (m *Mapper) convertSlice(key string, in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = m.convert(key, v)
	}
	return out
}
