// Package content serves the static question definitions of the exam.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/stemsi/exstem-casebook/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var embedded []byte

var (
	ErrPhaseNotFound  = errors.New("phase not found")
	ErrAssetNotFound  = errors.New("asset not found")
	ErrValueMismatch  = errors.New("answer does not fit field")
	ErrInvalidContent = errors.New("invalid content document")
)

// FieldKind is the widget a field is rendered with.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldEssay    FieldKind = "essay"
	FieldRadio    FieldKind = "radio"
	FieldSelect   FieldKind = "select"
	FieldOrdering FieldKind = "ordering"
	FieldGroup    FieldKind = "group"
)

// Document is the on-disk shape of the content file.
type Document struct {
	Scenarios  []Scenario `yaml:"scenarios" json:"scenarios"`
	Submission struct {
		Fields map[string]string `yaml:"fields" json:"fields"`
	} `yaml:"submission" json:"-"`
}

type Scenario struct {
	Number int        `yaml:"number" json:"number"`
	Title  string     `yaml:"title" json:"title"`
	Assets []Asset    `yaml:"assets" json:"assets,omitempty"`
	Phases []PhaseDef `yaml:"phases" json:"phases"`
}

// Asset is a static file shown alongside a scenario.
type Asset struct {
	Name  string `yaml:"name" json:"name"`
	Kind  string `yaml:"kind" json:"kind"`
	Label string `yaml:"label" json:"label"`
	File  string `yaml:"file" json:"file"`
}

type PhaseDef struct {
	Phase  int     `yaml:"phase" json:"phase"`
	Title  string  `yaml:"title" json:"title"`
	Prompt string  `yaml:"prompt" json:"prompt,omitempty"`
	Fields []Field `yaml:"fields" json:"fields"`
}

type Field struct {
	Key         string     `yaml:"key" json:"key"`
	Kind        FieldKind  `yaml:"kind" json:"kind"`
	Label       string     `yaml:"label" json:"label"`
	Options     []string   `yaml:"options" json:"options,omitempty"`
	Items       []string   `yaml:"items" json:"-"`
	Distractors []string   `yaml:"distractors" json:"-"`
	Subfields   []Subfield `yaml:"subfields" json:"subfields,omitempty"`
	Grading     *Grading   `yaml:"grading" json:"-"`
}

// Blocks returns every label offered by an ordering field, correct items
// first, as the pool starts out.
func (f *Field) Blocks() []string {
	out := make([]string, 0, len(f.Items)+len(f.Distractors))
	out = append(out, f.Items...)
	return append(out, f.Distractors...)
}

type Subfield struct {
	Name    string    `yaml:"name" json:"name"`
	Kind    FieldKind `yaml:"kind" json:"kind"`
	Options []string  `yaml:"options" json:"options,omitempty"`
}

// Grading declares that an essay field is sent to the grading gateway.
type Grading struct {
	GradeKey string `yaml:"grade_key"`
	Question string `yaml:"question"`
	Rubric   string `yaml:"rubric"`
}

// GradedEssay is one essay the grading pass scores.
type GradedEssay struct {
	Pair      model.Pair
	AnswerKey string
	GradeKey  string
	Question  string
	Rubric    string
}

// Provider answers read-only lookups by pair or answer key.
type Provider struct {
	scenarios map[int]*Scenario
	phases    map[model.Pair]*PhaseDef
	fields    map[string]*Field
	owners    map[string]model.Pair
	graded    []GradedEssay
	mapping   map[string]string
}

// Load reads the content file at path, or the embedded document when path
// is empty.
func Load(path string) (*Provider, error) {
	if path == "" {
		return Parse(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	return Parse(data)
}

// MustDefault returns the embedded content. It panics if the embedded
// document is broken, which only a bad build can cause.
func MustDefault() *Provider {
	p, err := Parse(embedded)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse decodes and indexes a content document.
func Parse(data []byte) (*Provider, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	p := &Provider{
		scenarios: make(map[int]*Scenario),
		phases:    make(map[model.Pair]*PhaseDef),
		fields:    make(map[string]*Field),
		owners:    make(map[string]model.Pair),
		mapping:   doc.Submission.Fields,
	}

	for i := range doc.Scenarios {
		sc := &doc.Scenarios[i]
		if _, dup := p.scenarios[sc.Number]; dup {
			return nil, fmt.Errorf("%w: duplicate scenario %d", ErrInvalidContent, sc.Number)
		}
		p.scenarios[sc.Number] = sc

		for j := range sc.Phases {
			ph := &sc.Phases[j]
			pair := model.Pair{Scenario: sc.Number, Phase: ph.Phase}
			if !pair.Valid() {
				return nil, fmt.Errorf("%w: pair %s out of range", ErrInvalidContent, pair)
			}
			if _, dup := p.phases[pair]; dup {
				return nil, fmt.Errorf("%w: duplicate pair %s", ErrInvalidContent, pair)
			}
			p.phases[pair] = ph

			for k := range ph.Fields {
				if err := p.index(pair, &ph.Fields[k]); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, pair := range model.AllPairs() {
		if _, ok := p.phases[pair]; !ok {
			return nil, fmt.Errorf("%w: missing pair %s", ErrInvalidContent, pair)
		}
	}
	return p, nil
}

func (p *Provider) index(pair model.Pair, f *Field) error {
	if f.Key == "" {
		return fmt.Errorf("%w: field without key in %s", ErrInvalidContent, pair)
	}
	if _, dup := p.fields[f.Key]; dup {
		return fmt.Errorf("%w: duplicate field %q", ErrInvalidContent, f.Key)
	}

	switch f.Kind {
	case FieldText, FieldEssay:
	case FieldRadio, FieldSelect:
		if len(f.Options) == 0 {
			return fmt.Errorf("%w: %q needs options", ErrInvalidContent, f.Key)
		}
	case FieldOrdering:
		if len(f.Items) == 0 {
			return fmt.Errorf("%w: %q needs items", ErrInvalidContent, f.Key)
		}
	case FieldGroup:
		if len(f.Subfields) == 0 {
			return fmt.Errorf("%w: %q needs subfields", ErrInvalidContent, f.Key)
		}
	default:
		return fmt.Errorf("%w: %q has unknown kind %q", ErrInvalidContent, f.Key, f.Kind)
	}

	p.fields[f.Key] = f
	p.owners[f.Key] = pair

	if f.Grading != nil {
		if f.Kind != FieldEssay || f.Grading.GradeKey == "" {
			return fmt.Errorf("%w: bad grading block on %q", ErrInvalidContent, f.Key)
		}
		p.graded = append(p.graded, GradedEssay{
			Pair:      pair,
			AnswerKey: f.Key,
			GradeKey:  f.Grading.GradeKey,
			Question:  f.Grading.Question,
			Rubric:    f.Grading.Rubric,
		})
	}
	return nil
}

// PairOf returns the pair whose inputs own key.
func (p *Provider) PairOf(key string) (model.Pair, bool) {
	pair, ok := p.owners[key]
	return pair, ok
}

// Field returns the definition of key.
func (p *Provider) Field(key string) (*Field, bool) {
	f, ok := p.fields[key]
	return f, ok
}

// Scenario returns the scenario header and assets.
func (p *Provider) Scenario(number int) (*Scenario, bool) {
	sc, ok := p.scenarios[number]
	return sc, ok
}

// Phase returns the question definition of a pair.
func (p *Provider) Phase(pair model.Pair) (*PhaseDef, error) {
	ph, ok := p.phases[pair]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPhaseNotFound, pair)
	}
	return ph, nil
}

// Asset looks up a named asset of a scenario.
func (p *Provider) Asset(scenario int, name string) (Asset, error) {
	sc, ok := p.scenarios[scenario]
	if ok {
		for _, a := range sc.Assets {
			if a.Name == name {
				return a, nil
			}
		}
	}
	return Asset{}, fmt.Errorf("%w: scenario %d %q", ErrAssetNotFound, scenario, name)
}

// GradedEssays lists essays to score, in visiting order.
func (p *Provider) GradedEssays() []GradedEssay {
	return append([]GradedEssay(nil), p.graded...)
}

// SubmissionFields maps local answer keys to the remote form's field names.
func (p *Provider) SubmissionFields() map[string]string {
	out := make(map[string]string, len(p.mapping))
	for k, v := range p.mapping {
		out[k] = v
	}
	return out
}
