package core

import (
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"
)

// Shape classifies the top-level JSON shape of a decoded response.
type Shape int

// JSON shapes recognized by Document.
const (
	// ShapeMapping is a JSON object.
	ShapeMapping Shape = iota
	// ShapeSequence is a JSON array.
	ShapeSequence
	// ShapeScalar is a string, number, boolean or null.
	ShapeScalar
)

// String returns the string representation of the shape.
func (s Shape) String() string {
	return [...]string{"mapping", "sequence", "scalar"}[s]
}

// Document is a decoded exchange response of unknown shape. Callers
// declare the shape they expect through Mapping or Sequence; asking for
// the wrong shape is a fatal ShapeError, not a soft failure.
type Document struct {
	value any
	shape Shape
}

// DecodeDocument decodes a raw response body. A body that is not valid
// JSON yields a RemoteError, as does a mapping carrying the uniform
// exchange error envelope {"error": {"message": ...}}.
func DecodeDocument(exchange string, body []byte) (*Document, error) {
	var value any
	if err := sonic.Unmarshal(body, &value); err != nil {
		return nil, WrapRemoteError(exchange, "returned invalid JSON response", err)
	}

	doc := &Document{value: value}
	switch v := value.(type) {
	case map[string]any:
		doc.shape = ShapeMapping
		if errVal, ok := v["error"]; ok {
			return nil, NewRemoteError(exchange, envelopeMessage(errVal))
		}
	case []any:
		doc.shape = ShapeSequence
	default:
		doc.shape = ShapeScalar
	}
	return doc, nil
}

// envelopeMessage extracts the nested message from an exchange error
// envelope, falling back to a rendering of the whole value.
func envelopeMessage(errVal any) string {
	if m, ok := errVal.(map[string]any); ok {
		if msg, ok := m["message"].(string); ok {
			return msg
		}
	}
	return fmt.Sprintf("%v", errVal)
}

// Shape returns the top-level shape of the document.
func (d *Document) Shape() Shape {
	return d.shape
}

// Mapping asserts that the document is a JSON object and returns it.
func (d *Document) Mapping() (Mapping, error) {
	m, ok := d.value.(map[string]any)
	if !ok {
		return nil, &ShapeError{Expected: ShapeMapping, Actual: d.shape}
	}
	return Mapping(m), nil
}

// Sequence asserts that the document is a JSON array and returns it.
func (d *Document) Sequence() ([]any, error) {
	s, ok := d.value.([]any)
	if !ok {
		return nil, &ShapeError{Expected: ShapeSequence, Actual: d.shape}
	}
	return s, nil
}

// Mapping is one raw exchange record: an untyped JSON object consumed
// immediately by normalization. Its accessors return the soft
// DeserializationError kinds so batch loops can fold failures into
// warnings.
type Mapping map[string]any

// String returns the value of a required string key.
func (m Mapping) String(key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", NewMissingKeyError(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", NewBadValueError(key, fmt.Sprintf("expected string, got %T", v))
	}
	return s, nil
}

// OptionalString returns the value of a string key when it is present
// and non-null; absent or null values yield ok=false.
func (m Mapping) OptionalString(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Decimal returns the value of a required numeric key as an exact
// decimal. Both JSON numbers and numeric strings are accepted, since
// exchanges are inconsistent about which they emit.
func (m Mapping) Decimal(key string) (*apd.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, NewMissingKeyError(key)
	}

	var text string
	switch n := v.(type) {
	case string:
		text = n
	case float64:
		text = strconv.FormatFloat(n, 'f', -1, 64)
	case int64:
		text = strconv.FormatInt(n, 10)
	default:
		return nil, NewBadValueError(key, fmt.Sprintf("expected number, got %T", v))
	}

	d, _, err := apd.NewFromString(text)
	if err != nil {
		return nil, NewBadValueError(key, err.Error())
	}
	return d, nil
}

// OptionalDecimal behaves like Decimal but treats an absent or null key
// as zero, which is how exchanges report "no fee".
func (m Mapping) OptionalDecimal(key string) (*apd.Decimal, error) {
	if v, ok := m[key]; !ok || v == nil {
		return new(apd.Decimal), nil
	}
	return m.Decimal(key)
}

// Has reports whether the key is present with a non-null value.
func (m Mapping) Has(key string) bool {
	v, ok := m[key]
	return ok && v != nil
}
