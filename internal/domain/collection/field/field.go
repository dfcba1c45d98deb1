package field

import "fmt"

// Type is the indexing type of a field.
type Type string

// Field type constants.
const (
	// Tag is an exact-match field. Arrays index every element.
	Tag     Type = "tag"
	Numeric Type = "numeric"
)

// Names owned by the record layout itself.
var reservedFieldNames = map[string]bool{
	"id": true, "content": true, "score": true, "vector": true,
	"partition": true, "attributes": true,
}

// IsReserved reports whether name is used by the record layout.
func IsReserved(name string) bool { return reservedFieldNames[name] }

// Field is an immutable value object describing an indexed attribute.
type Field struct {
	name      string
	fieldType Type
}

// New validates and creates a Field.
// Name must be non-empty, max 64 chars, and not reserved.
func New(name string, ft Type) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if reservedFieldNames[name] {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if ft != Tag && ft != Numeric {
		return Field{}, fmt.Errorf("invalid field type %q for %q", ft, name)
	}
	return Field{name: name, fieldType: ft}, nil
}

// Name returns the attribute name.
func (f Field) Name() string { return f.name }

// FieldType returns the field's indexing type.
func (f Field) FieldType() Type { return f.fieldType }

// IsTag reports whether the field is a tag field.
func (f Field) IsTag() bool { return f.fieldType == Tag }
