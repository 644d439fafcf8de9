package parser

import (
	"errors"

	"etl-records/internal/record"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON is returned when the batch is not well-formed JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrNotArray is returned when the batch document is not a JSON array.
	ErrNotArray = errors.New("batch must be a JSON array of records")
)

// Parser turns a raw batch document into records. It only reads the "type"
// discriminator and copies the remaining keys into the record payload;
// field-level validation is left to the per-kind chains.
type Parser struct{}

// New returns a ready-to-use Parser.
func New() *Parser {
	return &Parser{}
}

// Parse decodes a JSON array of objects. Elements that are not objects are
// kept as records with an empty type so they end up rejected as unknown
// instead of failing the whole batch.
func (p *Parser) Parse(raw []byte) ([]record.Record, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}

	doc := gjson.ParseBytes(raw)
	if !doc.IsArray() {
		return nil, ErrNotArray
	}

	var out []record.Record
	idx := 0
	doc.ForEach(func(_, value gjson.Result) bool {
		out = append(out, p.parseOne(idx, value))
		idx++
		return true
	})
	return out, nil
}

func (p *Parser) parseOne(idx int, value gjson.Result) record.Record {
	if !value.IsObject() {
		logrus.Debugf("record %d is not an object: %s", idx, value.Raw)
		return record.New("", idx, record.Fields{"raw": value.Raw})
	}

	fields, ok := value.Value().(map[string]interface{})
	if !ok {
		// gjson always yields a map for objects; keep the raw text just in case.
		fields = map[string]interface{}{"raw": value.Raw}
	}

	return record.New(discriminator(value), idx, fields)
}

// discriminator reads the "type" key. Non-string values are kept in their
// raw JSON form so the rejection notice shows what was actually sent.
func discriminator(value gjson.Result) string {
	t := value.Get(record.TypeField)
	switch {
	case !t.Exists():
		return ""
	case t.Type == gjson.String:
		return t.String()
	default:
		return t.Raw
	}
}
