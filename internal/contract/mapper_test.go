package contract

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowkit/engine/internal/config"
	"github.com/workflowkit/engine/internal/logger"
	"github.com/workflowkit/engine/pkg/models"
)

func TestMapper_ConvertScalars(t *testing.T) {
	m := New(nil)

	assert.Nil(t, m.Convert(nil))
	assert.Equal(t, "hello", m.Convert("hello"))
	assert.Equal(t, 42, m.Convert(42))
	assert.Equal(t, true, m.Convert(true))
}

func TestMapper_ConvertDecimal(t *testing.T) {
	m := New(nil)
	out := m.Convert(Decimal{String: "3.14", Float: 3.14})
	assert.Equal(t, 3.14, out)
}

func TestMapper_ConvertDateTime(t *testing.T) {
	m := New(nil)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	out := m.Convert(ts)
	assert.Equal(t, "2026-01-02T03:04:05Z", out)
}

func TestMapper_ConvertObjectID(t *testing.T) {
	m := New(nil)
	var id ObjectID
	copy(id[:], []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c})
	out := m.Convert(id)
	assert.Equal(t, "0102030405060708090a0b0c", out)
	assert.Len(t, out.(string), 24)
}

func TestMapper_ConvertUUIDBinary(t *testing.T) {
	m := New(nil)
	id := uuid.New()
	out := m.Convert(Binary{Subtype: uuidBinarySubtype, Data: id[:]})
	assert.Equal(t, id.String(), out)
}

func TestMapper_ConvertOtherBinary(t *testing.T) {
	m := New(nil)
	out := m.Convert(Binary{Subtype: 0x00, Data: []byte("raw-bytes")})
	assert.Equal(t, "cmF3LWJ5dGVz", out)
}

func TestMapper_ConvertRegex(t *testing.T) {
	m := New(nil)
	out := m.Convert(Regex{Pattern: "^foo.*bar$", Options: "i"})
	assert.Equal(t, "^foo.*bar$", out)
}

func TestMapper_ConvertNestedMapAndSlice(t *testing.T) {
	m := New(nil)
	ts := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	in := map[string]interface{}{
		"name": "alice",
		"tags": []interface{}{"a", "b"},
		"when": ts,
	}
	out := m.Convert(in).(map[string]interface{})
	assert.Equal(t, "alice", out["name"])
	assert.Equal(t, []interface{}{"a", "b"}, out["tags"])
	assert.Equal(t, "2026-01-02T00:00:00Z", out["when"])
}

func TestMapper_DetectInputFile(t *testing.T) {
	m := New(nil)
	in := map[string]interface{}{
		"filename":    "report.pdf",
		"content":     "YWJj",
		"contentType": "application/pdf",
		"fileSize":    float64(3),
	}
	out := m.Convert(in)
	f, ok := out.(*models.InputFile)
	require.True(t, ok)
	assert.Equal(t, "report.pdf", f.FileName)
	assert.Equal(t, int64(3), f.FileSize)
}

func TestMapper_DetectLegacyInputFilesList(t *testing.T) {
	m := New(nil)
	in := map[string]interface{}{
		"inputFiles": []interface{}{
			map[string]interface{}{"filename": "a.txt", "content": "YQ=="},
			map[string]interface{}{"filename": "b.txt", "content": "Yg=="},
		},
	}
	out := m.Convert(in).(map[string]interface{})
	files := out["inputFiles"].([]*models.InputFile)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].FileName)
}

func TestMapper_PlainMapWithoutFileShapeIsUnaffected(t *testing.T) {
	m := New(nil)
	in := map[string]interface{}{"filename": "x", "other": "y"}
	out := m.Convert(in)
	_, isFile := out.(*models.InputFile)
	assert.False(t, isFile, "map missing content must not be mistaken for a file")
}

// TestMapper_ConvertUnknownType_FallsBackToStringAndWarns covers the
// fallback branch of the closed conversion table: a value of a type the
// table doesn't know is stringified rather than dropped, and with a logger
// attached the nested case is attributed to its parent key. No assertion
// reads the emitted log line directly — there is no test seam into slog's
// output here — so this only exercises that a non-nil logger doesn't change
// the returned value or panic.
func TestMapper_ConvertUnknownType_FallsBackToStringAndWarns(t *testing.T) {
	log := logger.New(config.LoggingConfig{Level: "debug", Format: "text"})
	m := New(log)

	type unknownKind struct{ X int }

	out := m.Convert(unknownKind{X: 7})
	assert.Equal(t, "{7}", out)

	nested := m.Convert(map[string]interface{}{"weird": unknownKind{X: 9}}).(map[string]interface{})
	assert.Equal(t, "{9}", nested["weird"])
}
