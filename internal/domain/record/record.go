package record

import (
	"fmt"
	"maps"
	"regexp"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// Record size limits.
const (
	MaxIDLength = 256
	// MaxContentSize is the maximum content payload in bytes. Base64 images count too.
	MaxContentSize = 4 << 20
	// MaxPartitionLength bounds the partition key (agent id, tenant).
	MaxPartitionLength = 128
)

// Record is a stored profile or response: content, attributes and its embedding.
type Record struct {
	id         string
	partition  string
	kind       domain.InputKind
	content    string
	attributes map[string]any
	vector     []float32
}

// New validates and creates a Record without a vector.
// ID: ^[a-zA-Z0-9_.:-]+$, 1-256 chars. Content: non-empty, max 4MB.
// Attribute schema validation happens against the collection in the service layer.
func New(id, partition string, kind domain.InputKind, content string, attributes map[string]any) (Record, error) {
	if err := ValidateID(id); err != nil {
		return Record{}, err
	}
	if len(partition) > MaxPartitionLength {
		return Record{}, domain.Validationf("partition too long (max %d)", MaxPartitionLength)
	}
	if kind == "" {
		kind = domain.InputText
	}
	if !kind.IsValid() {
		return Record{}, domain.Validationf("invalid input type %q", kind)
	}
	if content == "" {
		return Record{}, domain.Validationf("content is required")
	}
	if len(content) > MaxContentSize {
		return Record{}, domain.Validationf("content too large (max %d bytes)", MaxContentSize)
	}
	return Record{
		id:         id,
		partition:  partition,
		kind:       kind,
		content:    content,
		attributes: maps.Clone(attributes),
	}, nil
}

// ValidateID checks the record id format.
func ValidateID(id string) error {
	if id == "" {
		return domain.Validationf("record id is required")
	}
	if len(id) > MaxIDLength {
		return domain.Validationf("record id too long (max %d)", MaxIDLength)
	}
	if !idRegex.MatchString(id) {
		return domain.Validationf("record id %q must be alphanumeric with _ . : -", id)
	}
	return nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(
	id, partition string, kind domain.InputKind, content string,
	attributes map[string]any, vector []float32,
) Record {
	return Record{
		id: id, partition: partition, kind: kind, content: content,
		attributes: attributes, vector: vector,
	}
}

// ID returns the record identifier.
func (r Record) ID() string { return r.id }

// Partition returns the partition key.
func (r Record) Partition() string { return r.partition }

// Kind returns the content input kind.
func (r Record) Kind() domain.InputKind { return r.kind }

// Content returns the stored payload.
func (r Record) Content() string { return r.content }

// Input returns the payload as an embedding input.
func (r Record) Input() domain.Input {
	return domain.Input{Kind: r.kind, Payload: r.content}
}

// Attributes returns the attribute map.
func (r Record) Attributes() map[string]any { return r.attributes }

// Vector returns the embedding vector.
func (r Record) Vector() []float32 { return r.vector }

// SetVector sets the embedding vector (called by the service after embedding).
func (r *Record) SetVector(v []float32) { r.vector = v }

// String implements fmt.Stringer for logs.
func (r Record) String() string {
	return fmt.Sprintf("record(%s/%s)", r.partition, r.id)
}
