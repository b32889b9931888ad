package model

import (
	"fmt"
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
)

// LabelTable maps the canonical lowercase tokens stored in the database to
// the capitalized labels shown on pages, in both directions.
type LabelTable struct {
	field   string
	tokens  []string
	toLabel map[string]string
	toToken map[string]string
}

// NewLabelTable builds a table from token/label pairs given in display order.
func NewLabelTable(field string, pairs ...[2]string) *LabelTable {
	t := &LabelTable{
		field:   field,
		toLabel: make(map[string]string, len(pairs)),
		toToken: make(map[string]string, len(pairs)),
	}
	for _, p := range pairs {
		t.tokens = append(t.tokens, p[0])
		t.toLabel[p[0]] = p[1]
		t.toToken[strings.ToLower(p[1])] = p[0]
	}
	return t
}

// Label returns the display label for a stored token.
func (t *LabelTable) Label(token string) (string, error) {
	label, ok := t.toLabel[token]
	if !ok {
		return "", fmt.Errorf("%w: %s token %q", apperr.ErrUnknownLabel, t.field, token)
	}
	return label, nil
}

// Token returns the stored token for a display label. Matching ignores case
// and surrounding whitespace.
func (t *LabelTable) Token(label string) (string, error) {
	token, ok := t.toToken[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return "", fmt.Errorf("%w: %s label %q", apperr.ErrUnknownLabel, t.field, label)
	}
	return token, nil
}

// Tokens returns every token in display order.
func (t *LabelTable) Tokens() []string {
	out := make([]string, len(t.tokens))
	copy(out, t.tokens)
	return out
}

// Field returns the name of the enumerated field.
func (t *LabelTable) Field() string { return t.field }

// Relation tokens for people.
const (
	RelationSelf         = "self"
	RelationFamily       = "family"
	RelationFriend       = "friend"
	RelationRomantic     = "romantic"
	RelationColleague    = "colleague"
	RelationAcquaintance = "acquaintance"
	RelationProfessional = "professional"
	RelationOther        = "other"
)

var (
	ChapterTypes = NewLabelTable("chapter type",
		[2]string{"prose", "Prose"},
		[2]string{"vignette", "Vignette"},
		[2]string{"poem", "Poem"},
		[2]string{"letter", "Letter"},
	)
	ChapterStatuses = NewLabelTable("chapter status",
		[2]string{"draft", "Draft"},
		[2]string{"revised", "Revised"},
		[2]string{"final", "Final"},
	)
	ReferenceModes = NewLabelTable("reference mode",
		[2]string{"direct", "Direct"},
		[2]string{"indirect", "Indirect"},
		[2]string{"paraphrase", "Paraphrase"},
		[2]string{"visual", "Visual"},
	)
	Contributions = NewLabelTable("contribution",
		[2]string{"primary", "Primary"},
		[2]string{"composite", "Composite"},
		[2]string{"inspiration", "Inspiration"},
	)
	SceneOrigins = NewLabelTable("scene origin",
		[2]string{"journaled", "Journaled"},
		[2]string{"inferred", "Inferred"},
		[2]string{"invented", "Invented"},
		[2]string{"composite", "Composite"},
	)
	Relations = NewLabelTable("relation",
		[2]string{RelationSelf, "Self"},
		[2]string{RelationFamily, "Family"},
		[2]string{RelationFriend, "Friend"},
		[2]string{RelationRomantic, "Romantic"},
		[2]string{RelationColleague, "Colleague"},
		[2]string{RelationAcquaintance, "Acquaintance"},
		[2]string{RelationProfessional, "Professional"},
		[2]string{RelationOther, "Other"},
	)
)

// LabelOr returns the label for token, or fallback when the token is unknown
// or empty. Used on the render side where a stale token must not abort a page.
func (t *LabelTable) LabelOr(token, fallback string) string {
	if label, err := t.Label(token); err == nil {
		return label
	}
	return fallback
}
