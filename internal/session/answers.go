package session

import "github.com/stemsi/exstem-casebook/internal/model"

// Answers is the flat answer store of one session. It overwrites by key
// and never deletes; callers decide whether a write is allowed.
type Answers struct {
	values map[string]model.Value
}

func newAnswers() *Answers {
	return &Answers{values: make(map[string]model.Value)}
}

// Set stores v under key, replacing any earlier value.
func (a *Answers) Set(key string, v model.Value) {
	a.values[key] = v.Clone()
}

// Get returns the value stored under key.
func (a *Answers) Get(key string) (model.Value, bool) {
	v, ok := a.values[key]
	if !ok {
		return model.Value{}, false
	}
	return v.Clone(), true
}

// Len returns the number of stored keys.
func (a *Answers) Len() int { return len(a.values) }

// Snapshot returns a deep copy of the store.
func (a *Answers) Snapshot() map[string]model.Value {
	out := make(map[string]model.Value, len(a.values))
	for k, v := range a.values {
		out[k] = v.Clone()
	}
	return out
}
