package candidate

// Candidate is one retrieved record with its raw relevance score.
// Immutable for the duration of a ranking pass.
type Candidate struct {
	id         string
	partition  string
	score      float64
	content    string
	attributes map[string]any
}

// New creates a candidate.
func New(id, partition string, score float64, content string, attributes map[string]any) Candidate {
	return Candidate{
		id: id, partition: partition, score: score,
		content: content, attributes: attributes,
	}
}

// ID returns the record identifier, unique within its partition.
func (c Candidate) ID() string { return c.id }

// Partition returns the partition key (agent id, tenant). May be empty.
func (c Candidate) Partition() string { return c.partition }

// Score returns the raw similarity score. Higher is more relevant.
func (c Candidate) Score() float64 { return c.score }

// Content returns the stored text payload.
func (c Candidate) Content() string { return c.content }

// Attributes returns the record attributes.
func (c Candidate) Attributes() map[string]any { return c.attributes }

// Dedup drops repeated ids, keeping the first occurrence.
func Dedup(cs []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(cs))
	out := cs[:0:0]
	for _, c := range cs {
		k := c.partition + "\x00" + c.id
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Without returns cs minus every candidate with the given id.
func Without(cs []Candidate, id string) []Candidate {
	out := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		if c.id != id {
			out = append(out, c)
		}
	}
	return out
}
