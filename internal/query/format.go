package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// NoResults is returned by FormatResult for an empty row set.
const NoResults = "No results found."

const (
	timeLayout      = "2006-01-02 15:04:05"
	timeLayoutMicro = "2006-01-02 15:04:05.000000"
)

// FormatResult renders a Result for the answer prompt. Error results return
// their text unchanged.
func FormatResult(result Result) string {
	if result.Failed() {
		return result.Err.Error()
	}
	if len(result.Rows) == 0 {
		return NoResults
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result.Rows); err != nil {
		return fmt.Sprintf("Error formatting results: %v", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// textValue keeps JSON scalars and turns everything else into text.
func textValue(value any) any {
	switch typed := value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return typed
	case float32:
		return floatValue(float64(typed))
	case float64:
		return floatValue(typed)
	case []byte:
		return string(typed)
	case time.Time:
		return formatTime(typed)
	case *time.Time:
		if typed == nil {
			return nil
		}
		return formatTime(*typed)
	case json.Number:
		return typed
	case fmt.Stringer:
		return typed.String()
	case error:
		return typed.Error()
	default:
		return fmt.Sprint(typed)
	}
}

func floatValue(value float64) any {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'g', -1, 64)
	}
	return value
}

func formatTime(value time.Time) string {
	layout := timeLayout
	if value.Nanosecond()/int(time.Microsecond) != 0 {
		layout = timeLayoutMicro
	}
	if value.Location() != time.UTC {
		layout += "-07:00"
	}
	return value.Format(layout)
}
