package persistence

import (
	"bytes"
	"path"
	"strings"

	"github.com/ASHISH26940/suggestd/internal/store"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Format is the layout of a dataset payload.
type Format string

const (
	// FormatJSON is a single JSON array of records.
	FormatJSON Format = "json"
	// FormatJSONLines is one JSON record object per line.
	FormatJSONLines Format = "jsonl"
)

// ErrUnknownFormat is returned for formats other than json and jsonl.
var ErrUnknownFormat = errors.New("unknown dataset format")

// ParseFormat validates a configured format name. An empty name means auto-detect.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return "", nil
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONLines, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q", name)
	}
}

// DetectFormat guesses the format from a file name, ignoring a compression suffix
// already stripped by the caller. Anything that is not .jsonl or .ndjson is JSON.
func DetectFormat(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".jsonl", ".ndjson":
		return FormatJSONLines
	default:
		return FormatJSON
	}
}

// Decode parses a dataset payload. The whole payload must be valid: a single
// bad record fails the decode, so a caller never sees a partial dataset.
func Decode(data []byte, format Format) ([]store.Record, error) {
	switch format {
	case FormatJSON, "":
		return decodeArray(data)
	case FormatJSONLines:
		return decodeLines(data)
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
}

func decodeArray(data []byte) ([]store.Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("dataset is not valid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, errors.New("dataset must be a json array")
	}

	records := make([]store.Record, 0, len(root.Array()))
	var err error
	i := 0
	root.ForEach(func(_, value gjson.Result) bool {
		var rec store.Record
		rec, err = parseRecord(value)
		if err != nil {
			err = errors.Wrapf(err, "record %d", i)
			return false
		}
		records = append(records, rec)
		i++
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func decodeLines(data []byte) ([]store.Record, error) {
	var records []store.Record
	err := Replay(bytes.NewReader(data), func(line int, raw []byte) error {
		if !gjson.ValidBytes(raw) {
			return errors.Errorf("line %d: not valid json", line)
		}
		rec, err := parseRecord(gjson.ParseBytes(raw))
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func parseRecord(value gjson.Result) (store.Record, error) {
	if !value.IsObject() {
		return store.Record{}, errors.New("not an object")
	}
	id := value.Get("id")
	if id.Type != gjson.String {
		return store.Record{}, errors.New("field id must be a string")
	}
	name := value.Get("name")
	if name.Type != gjson.String {
		return store.Record{}, errors.New("field name must be a string")
	}
	cost := value.Get("cost")
	if cost.Type != gjson.Number {
		return store.Record{}, errors.New("field cost must be a number")
	}
	return store.Record{ID: id.Str, Name: name.Str, Cost: cost.Num}, nil
}
