package materialize

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"
)

// Fingerprint hashes the schema and rows of t. Equal tables have equal
// fingerprints; row order is significant.
func Fingerprint(t *core.Table) string {
	h := xxh3.New()
	var buf []byte

	for _, c := range t.Columns {
		buf = appendField(buf[:0], 'c', c.Name+":"+string(c.Type))
		_, _ = h.Write(buf)
	}
	for _, row := range t.Rows {
		_, _ = h.Write([]byte{'\n'})
		for _, v := range row {
			buf = appendValue(buf[:0], v)
			_, _ = h.Write(buf)
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// appendField writes a tagged, length-prefixed field.
func appendField(buf []byte, tag byte, s string) []byte {
	buf = append(buf, tag)
	buf = strconv.AppendInt(buf, int64(len(s)), 10)
	buf = append(buf, ':')
	return append(buf, s...)
}

func appendValue(buf []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(buf, 'n')
	case int64:
		return appendField(buf, 'i', strconv.FormatInt(x, 10))
	case float64:
		return appendField(buf, 'f', strconv.FormatUint(math.Float64bits(x), 16))
	case decimal.Decimal:
		return appendField(buf, 'd', x.String())
	case time.Time:
		return appendField(buf, 't', x.UTC().Format(time.RFC3339Nano))
	case string:
		return appendField(buf, 's', x)
	case bool:
		return appendField(buf, 'b', strconv.FormatBool(x))
	default:
		return appendField(buf, '?', fmt.Sprint(x))
	}
}
