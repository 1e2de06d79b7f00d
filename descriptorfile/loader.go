// Package descriptorfile reads service descriptors from YAML documents.
//
//	descriptors:
//	  - implementation: example.com/greet.EnglishGreeter
//	    contracts: [example.com/greet.Greeter]
//	    name: english
//	    scope: singleton
//	    rank: 5
//	    metadata:
//	      locale: [en]
//
// Creators cannot be expressed in a file; they come from a Providers map keyed
// by implementation.
package descriptorfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/centraunit/habitat"
	"gopkg.in/yaml.v3"
)

// Record is one descriptor as written in a file.
type Record struct {
	Implementation string              `yaml:"implementation"`
	Contracts      []string            `yaml:"contracts,omitempty"`
	Name           string              `yaml:"name,omitempty"`
	Scope          string              `yaml:"scope,omitempty"`
	Qualifiers     []string            `yaml:"qualifiers,omitempty"`
	Metadata       map[string][]string `yaml:"metadata,omitempty"`
	Rank           int32               `yaml:"rank,omitempty"`
	Kind           string              `yaml:"kind,omitempty"`
}

type document struct {
	Descriptors []Record `yaml:"descriptors"`
}

// Providers supplies the creator for each implementation named in a file.
type Providers map[habitat.TypeKey]habitat.Creator

// RecordError represents a record that could not be turned into a descriptor.
type RecordError struct {
	Index          int
	Implementation string
	Reason         string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("descriptor record %d (%s): %s", e.Index, e.Implementation, e.Reason)
}

// Decode reads the records of one YAML document. Unknown keys are rejected.
func Decode(r io.Reader) ([]Record, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return doc.Descriptors, nil
}

// Build turns a record into a descriptor using the creator from providers.
func Build(i int, rec Record, providers Providers) (*habitat.ServiceDescriptor, error) {
	if rec.Implementation == "" {
		return nil, &RecordError{Index: i, Reason: "implementation is empty"}
	}
	impl := habitat.TypeKey(rec.Implementation)
	creator, ok := providers[impl]
	if !ok {
		return nil, &RecordError{Index: i, Implementation: rec.Implementation, Reason: "no provider"}
	}

	b := habitat.Link(impl).Named(rec.Name).OfRank(rec.Rank).ProvidedBy(creator)
	for _, c := range rec.Contracts {
		b.To(habitat.TypeKey(c))
	}
	if rec.Scope != "" {
		b.In(habitat.Scope(rec.Scope))
	}
	for _, q := range rec.Qualifiers {
		b.QualifiedBy(q)
	}
	for k, vs := range rec.Metadata {
		for _, v := range vs {
			b.Has(k, v)
		}
	}
	switch rec.Kind {
	case "", "class":
	case "factory":
		b.AsFactory()
	default:
		return nil, &RecordError{Index: i, Implementation: rec.Implementation, Reason: "unknown kind " + rec.Kind}
	}
	return b.Build(), nil
}

// Load decodes r and builds every record.
func Load(r io.Reader, providers Providers) ([]*habitat.ServiceDescriptor, error) {
	recs, err := Decode(r)
	if err != nil {
		return nil, err
	}
	out := make([]*habitat.ServiceDescriptor, 0, len(recs))
	for i, rec := range recs {
		d, err := Build(i, rec, providers)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Populate loads r and registers every descriptor in l, in file order. Nothing
// is registered when the file fails to load; registration stops at the first
// descriptor the locator rejects.
func Populate(l *habitat.ServiceLocator, r io.Reader, providers Providers) ([]*habitat.InhabitantHandle, error) {
	descriptors, err := Load(r, providers)
	if err != nil {
		return nil, err
	}
	handles := make([]*habitat.InhabitantHandle, 0, len(descriptors))
	for _, d := range descriptors {
		h, err := l.Register(d)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// PopulateFile is Populate for the file at path.
func PopulateFile(l *habitat.ServiceLocator, path string, providers Providers) ([]*habitat.InhabitantHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Populate(l, f, providers)
}
