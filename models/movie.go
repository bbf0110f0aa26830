package models

// Movie is an entry of the content catalog and a trivia movie card.
type Movie struct {
	ID         string `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Genre      string `json:"genre" yaml:"genre"`
	Category   string `json:"category" yaml:"category"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
}

// HeadToHeadCard is the prompt both trivia representatives answer.
type HeadToHeadCard struct {
	ID          string   `json:"id" yaml:"id"`
	Category    string   `json:"category" yaml:"category"`
	Description string   `json:"description" yaml:"description"`
	Examples    []string `json:"examples" yaml:"examples"`
}

// Field is one of the three clue styles a trivia movie is assigned to.
type Field string

const (
	FieldOneWord  Field = "oneWord"
	FieldDialogue Field = "dialogue"
	FieldActOut   Field = "actOut"
)

// Fields lists every field in assignment order.
var Fields = []Field{FieldOneWord, FieldDialogue, FieldActOut}
