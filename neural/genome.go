// Package neural provides the fixed-topology feedforward controllers evolved by
// the trainer.
package neural

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Neuron is the per-neuron parameter record.
type Neuron struct {
	Bias float64 `json:"bias"`
}

// Connection is the per-connection parameter record.
type Connection struct {
	Weight float64 `json:"weight"`
}

// Rand is the random source used to initialize genomes.
type Rand interface {
	Float64() float64
}

// ErrTopology reports parameter records that do not fit the layer sizes.
var ErrTopology = errors.New("neural: records do not match topology")

// Genome is an immutable fully connected feedforward network.
//
// Neurons are stored layer by layer, input layer included (input biases are
// carried but unused). Connections are stored per layer transition, grouped by
// target neuron: for transition l, weight (j, i) links neuron i of layer l to
// neuron j of layer l+1. Hidden and output neurons use the logistic function.
type Genome struct {
	layers      []int
	neurons     []Neuron
	connections []Connection

	weights []*mat.Dense
	biases  []*mat.VecDense
}

// NeuronCount returns the number of neuron records for the given layer sizes.
func NeuronCount(layers []int) int {
	n := 0
	for _, size := range layers {
		n += size
	}
	return n
}

// ConnectionCount returns the number of connection records for the given layer sizes.
func ConnectionCount(layers []int) int {
	n := 0
	for l := 0; l+1 < len(layers); l++ {
		n += layers[l] * layers[l+1]
	}
	return n
}

// New builds a genome from parameter records. The records are copied.
func New(layers []int, neurons []Neuron, connections []Connection) (*Genome, error) {
	if len(layers) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 layers, got %d", ErrTopology, len(layers))
	}
	for i, size := range layers {
		if size <= 0 {
			return nil, fmt.Errorf("%w: layer %d has size %d", ErrTopology, i, size)
		}
	}
	if want := NeuronCount(layers); len(neurons) != want {
		return nil, fmt.Errorf("%w: %d neurons, want %d", ErrTopology, len(neurons), want)
	}
	if want := ConnectionCount(layers); len(connections) != want {
		return nil, fmt.Errorf("%w: %d connections, want %d", ErrTopology, len(connections), want)
	}

	g := &Genome{
		layers:      append([]int(nil), layers...),
		neurons:     append([]Neuron(nil), neurons...),
		connections: append([]Connection(nil), connections...),
	}
	g.compile()
	return g, nil
}

// MustNew is like New but panics on error.
func MustNew(layers []int, neurons []Neuron, connections []Connection) *Genome {
	g, err := New(layers, neurons, connections)
	if err != nil {
		panic(err)
	}
	return g
}

// Random creates a genome with every bias and weight uniform in [-r, r).
func Random(layers []int, rng Rand, r float64) *Genome {
	neurons := make([]Neuron, NeuronCount(layers))
	for i := range neurons {
		neurons[i].Bias = (rng.Float64()*2 - 1) * r
	}
	connections := make([]Connection, ConnectionCount(layers))
	for i := range connections {
		connections[i].Weight = (rng.Float64()*2 - 1) * r
	}
	return MustNew(layers, neurons, connections)
}

// compile lays the records out as gonum matrices.
func (g *Genome) compile() {
	neuronOff := g.layers[0]
	connOff := 0
	for l := 0; l+1 < len(g.layers); l++ {
		rows, cols := g.layers[l+1], g.layers[l]

		w := make([]float64, rows*cols)
		for i := range w {
			w[i] = g.connections[connOff+i].Weight
		}
		b := make([]float64, rows)
		for i := range b {
			b[i] = g.neurons[neuronOff+i].Bias
		}

		g.weights = append(g.weights, mat.NewDense(rows, cols, w))
		g.biases = append(g.biases, mat.NewVecDense(rows, b))

		connOff += rows * cols
		neuronOff += rows
	}
}

// Activate runs the network forward. It panics if len(inputs) does not match
// the input layer.
func (g *Genome) Activate(inputs []float64) []float64 {
	if len(inputs) != g.layers[0] {
		panic(fmt.Sprintf("neural: %d inputs, network takes %d", len(inputs), g.layers[0]))
	}

	x := mat.NewVecDense(len(inputs), append([]float64(nil), inputs...))
	for l, w := range g.weights {
		var h mat.VecDense
		h.MulVec(w, x)
		h.AddVec(&h, g.biases[l])
		for i := 0; i < h.Len(); i++ {
			h.SetVec(i, sigmoid(h.AtVec(i)))
		}
		x = &h
	}

	out := make([]float64, x.Len())
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out
}

// Layers returns a copy of the layer sizes.
func (g *Genome) Layers() []int {
	return append([]int(nil), g.layers...)
}

// Neurons returns a copy of the neuron records.
func (g *Genome) Neurons() []Neuron {
	return append([]Neuron(nil), g.neurons...)
}

// Connections returns a copy of the connection records.
func (g *Genome) Connections() []Connection {
	return append([]Connection(nil), g.connections...)
}

// NumNeurons returns the number of neuron records.
func (g *Genome) NumNeurons() int {
	return len(g.neurons)
}

// Equal reports whether two genomes have the same topology and parameters.
func (g *Genome) Equal(o *Genome) bool {
	if len(g.layers) != len(o.layers) || len(g.neurons) != len(o.neurons) || len(g.connections) != len(o.connections) {
		return false
	}
	for i := range g.layers {
		if g.layers[i] != o.layers[i] {
			return false
		}
	}
	for i := range g.neurons {
		if g.neurons[i] != o.neurons[i] {
			return false
		}
	}
	for i := range g.connections {
		if g.connections[i] != o.connections[i] {
			return false
		}
	}
	return true
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
