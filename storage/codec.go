// Package storage persists populations as JSON genome documents in files,
// SQLite or memory.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pthm-cable/dinoevo/neural"
)

var (
	ErrNotFound  = errors.New("storage: population not found")
	ErrMalformed = errors.New("storage: malformed genome document")
	ErrTopology  = errors.New("storage: genome does not match topology")
)

// Document is the persisted form of one genome.
type Document struct {
	Neurons     []neural.Neuron     `json:"neurons"`
	Connections []neural.Connection `json:"connections"`
}

// wire types detect missing fields; extra fields are ignored.
type wireNeuron struct {
	Bias *float64 `json:"bias"`
}

type wireConnection struct {
	Weight *float64 `json:"weight"`
}

type wireDocument struct {
	Neurons     []wireNeuron     `json:"neurons"`
	Connections []wireConnection `json:"connections"`
}

// FromGenome converts a genome into its document.
func FromGenome(g *neural.Genome) Document {
	return Document{Neurons: g.Neurons(), Connections: g.Connections()}
}

// Genome builds a genome with the given layer sizes from the document.
func (d Document) Genome(layers []int) (*neural.Genome, error) {
	g, err := neural.New(layers, d.Neurons, d.Connections)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopology, err)
	}
	return g, nil
}

// Encode serializes genomes as a JSON array of documents.
func Encode(genomes []*neural.Genome) ([]byte, error) {
	docs := make([]Document, len(genomes))
	for i, g := range genomes {
		docs[i] = FromGenome(g)
	}
	return json.MarshalIndent(docs, "", "  ")
}

// Decode parses a JSON array of documents and validates every genome against
// the layer sizes. Nothing is returned unless every document is valid.
func Decode(data []byte, layers []int) ([]*neural.Genome, error) {
	var wire []wireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	genomes := make([]*neural.Genome, 0, len(wire))
	for i, w := range wire {
		doc, err := w.document()
		if err != nil {
			return nil, fmt.Errorf("genome %d: %w", i, err)
		}
		g, err := doc.Genome(layers)
		if err != nil {
			return nil, fmt.Errorf("genome %d: %w", i, err)
		}
		genomes = append(genomes, g)
	}
	return genomes, nil
}

func (w wireDocument) document() (Document, error) {
	if w.Neurons == nil || w.Connections == nil {
		return Document{}, fmt.Errorf("%w: missing neurons or connections", ErrMalformed)
	}
	var d Document
	for j, n := range w.Neurons {
		if n.Bias == nil {
			return Document{}, fmt.Errorf("%w: neuron %d has no bias", ErrMalformed, j)
		}
		d.Neurons = append(d.Neurons, neural.Neuron{Bias: *n.Bias})
	}
	for j, c := range w.Connections {
		if c.Weight == nil {
			return Document{}, fmt.Errorf("%w: connection %d has no weight", ErrMalformed, j)
		}
		d.Connections = append(d.Connections, neural.Connection{Weight: *c.Weight})
	}
	return d, nil
}
