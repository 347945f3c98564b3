package content

import (
	"fmt"
	"slices"

	"github.com/stemsi/exstem-casebook/internal/model"
)

// CheckValue verifies that v is an acceptable answer for key.
func (p *Provider) CheckValue(key string, v model.Value) error {
	f, ok := p.fields[key]
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrValueMismatch, key)
	}
	if err := v.Validate(); err != nil {
		return err
	}

	switch f.Kind {
	case FieldText, FieldEssay:
		return expectKind(key, v, model.KindScalar)
	case FieldRadio, FieldSelect:
		if err := expectKind(key, v, model.KindChoice); err != nil {
			return err
		}
		return oneOf(key, v.Text, f.Options)
	case FieldOrdering:
		return checkOrdering(f, v)
	case FieldGroup:
		if err := expectKind(key, v, model.KindGroup); err != nil {
			return err
		}
		return checkGroup(f, v)
	}
	return fmt.Errorf("%w: %q", ErrValueMismatch, key)
}

func expectKind(key string, v model.Value, want model.ValueKind) error {
	if v.Kind != want {
		return fmt.Errorf("%w: %q wants %s, got %s", ErrValueMismatch, key, want, v.Kind)
	}
	return nil
}

func oneOf(key, got string, options []string) error {
	if !slices.Contains(options, got) {
		return fmt.Errorf("%w: %q is not an option of %q", ErrValueMismatch, got, key)
	}
	return nil
}

// checkOrdering accepts either the full pool/sequence split or just the
// sequenced list. Every label must come from the field and appear once.
func checkOrdering(f *Field, v model.Value) error {
	var labels []string
	switch v.Kind {
	case model.KindPartitioned:
		labels = append(append(labels, v.Pool...), v.Sequenced...)
	case model.KindList:
		labels = v.Items
	default:
		return fmt.Errorf("%w: %q wants partitioned or list, got %s", ErrValueMismatch, f.Key, v.Kind)
	}

	blocks := f.Blocks()
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if !slices.Contains(blocks, l) {
			return fmt.Errorf("%w: %q is not a block of %q", ErrValueMismatch, l, f.Key)
		}
		if seen[l] {
			return fmt.Errorf("%w: %q placed twice in %q", ErrValueMismatch, l, f.Key)
		}
		seen[l] = true
	}
	return nil
}

func checkGroup(f *Field, v model.Value) error {
	for name, val := range v.Fields {
		idx := slices.IndexFunc(f.Subfields, func(s Subfield) bool { return s.Name == name })
		if idx < 0 {
			return fmt.Errorf("%w: %q has no subfield %q", ErrValueMismatch, f.Key, name)
		}
		sub := f.Subfields[idx]
		if (sub.Kind == FieldRadio || sub.Kind == FieldSelect) && val != "" {
			if err := oneOf(f.Key+"."+name, val, sub.Options); err != nil {
				return err
			}
		}
	}
	return nil
}
