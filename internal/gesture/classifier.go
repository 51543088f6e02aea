// Package gesture maps hand feature sets to fingerspelled letters using an
// ordered, replaceable rule table.
package gesture

import (
	"github.com/ayusman/vocalize/internal/features"
)

// Label is a recognized letter ("A".."Z") or None.
type Label string

// None is the label for frames that match no rule, including "no hand".
const None Label = ""

// IsNone reports whether the label is the no-gesture label.
func (l Label) IsNone() bool {
	return l == None
}

// String returns the letter, or "none".
func (l Label) String() string {
	if l == None {
		return "none"
	}
	return string(l)
}

// Letters lists every label the default table can produce, in alphabetical order.
var Letters = []Label{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
}

// ParseLabel validates a single uppercase letter.
func ParseLabel(s string) (Label, bool) {
	for _, l := range Letters {
		if string(l) == s {
			return l, true
		}
	}
	return None, false
}

// Classifier evaluates a rule table against feature sets. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	table Table
}

// NewClassifier creates a classifier for the given table.
func NewClassifier(table Table) *Classifier {
	return &Classifier{table: table}
}

// Classify returns the label of the first matching rule, or None.
func (c *Classifier) Classify(f features.Set) Label {
	for _, r := range c.table.Rules {
		if r.Match(f) {
			return r.Label
		}
	}
	return None
}

// Table returns the rule table in use.
func (c *Classifier) Table() Table {
	return c.table
}
