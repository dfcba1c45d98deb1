package vecmatch

// InputType selects how a payload is interpreted by the embedder.
type InputType string

// Input type constants.
const (
	InputText        InputType = "text"
	InputImageURL    InputType = "image_url"
	InputImageBase64 InputType = "image_base64"
)

// Input is a single payload to vectorize.
type Input struct {
	Type    InputType
	Payload string
}

// Text is shorthand for a text input.
func Text(s string) Input { return Input{Type: InputText, Payload: s} }

// FieldType defines the type of a filterable attribute.
type FieldType string

// Field type constants.
const (
	FieldTag     FieldType = "tag"
	FieldNumeric FieldType = "numeric"
)

// Field is a filterable attribute of a collection.
type Field struct {
	Name string
	Type FieldType
}

// Record is a stored profile or response.
type Record struct {
	ID         string
	Partition  string
	Type       InputType
	Content    string
	Attributes map[string]any
}

// Range bounds a numeric attribute. Nil bounds are open.
type Range struct {
	GT  *float64
	GTE *float64
	LT  *float64
	LTE *float64
}

// Condition is one filter clause. Exactly one of Match, In or Range must be set.
type Condition struct {
	Key   string
	Match string
	In    []string
	Range *Range
}

// Filters combines conditions: all of Must, at least one of Should, none of MustNot.
type Filters struct {
	Must    []Condition
	Should  []Condition
	MustNot []Condition
}

// MatchRequest selects the query source and the page to return.
// Exactly one of Query or ID is set. Type defaults to text.
type MatchRequest struct {
	Query     string
	Type      InputType
	ID        string
	Partition string
	Filters   Filters
	Page      int
	PerPage   int
}

// MatchItem is one ranked result.
type MatchItem struct {
	ID            string
	Partition     string
	Score         float64
	RelativeScore float64
	Rank          int
	Content       string
	Attributes    map[string]any
}

// MatchStats describes the candidate set a page was ranked from.
type MatchStats struct {
	TotalCandidates int
	FilteredCount   int
	MaxScore        float64
	MeanScore       float64
	Threshold       float64
}

// MatchResult is one page of ranked results.
type MatchResult struct {
	Items   []MatchItem
	Page    int
	PerPage int
	Stats   MatchStats
	Cached  bool
}

// CompareSide is a stored record id or an inline input.
type CompareSide struct {
	ID    string
	Input *Input
}

// Comparison is the outcome of Compare.
type Comparison struct {
	Similarity  float64
	Description string
	// Generated is false when the fallback description was used.
	Generated bool
}
