package neural

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

var defaultLayers = []int{3, 4, 4, 1}

func TestCounts(t *testing.T) {
	if got := NeuronCount(defaultLayers); got != 12 {
		t.Errorf("NeuronCount = %d, want 12", got)
	}
	if got := ConnectionCount(defaultLayers); got != 3*4+4*4+4*1 {
		t.Errorf("ConnectionCount = %d, want 32", got)
	}
}

func TestNewRejectsMismatchedRecords(t *testing.T) {
	tests := []struct {
		name    string
		layers  []int
		neurons int
		conns   int
	}{
		{"single layer", []int{3}, 3, 0},
		{"zero layer", []int{3, 0, 1}, 4, 3},
		{"short neurons", defaultLayers, 11, 32},
		{"long connections", defaultLayers, 12, 33},
	}
	for _, tt := range tests {
		_, err := New(tt.layers, make([]Neuron, tt.neurons), make([]Connection, tt.conns))
		if !errors.Is(err, ErrTopology) {
			t.Errorf("%s: err = %v, want ErrTopology", tt.name, err)
		}
	}
}

func TestActivateKnownValues(t *testing.T) {
	// 2-1 network: out = sigmoid(w0*x0 + w1*x1 + b).
	g := MustNew([]int{2, 1},
		[]Neuron{{0}, {0}, {Bias: -1}},
		[]Connection{{Weight: 2}, {Weight: -3}},
	)
	out := g.Activate([]float64{1, 0.5})
	want := 1 / (1 + math.Exp(-(2 - 1.5 - 1)))
	if len(out) != 1 || math.Abs(out[0]-want) > 1e-12 {
		t.Errorf("Activate = %v, want [%v]", out, want)
	}
}

func TestActivateTargetMajorLayout(t *testing.T) {
	// Connection (j, i) sits at j*cols + i; the second output only sees input 1.
	g := MustNew([]int{2, 2},
		make([]Neuron, 4),
		[]Connection{{Weight: 0}, {Weight: 0}, {Weight: 0}, {Weight: 10}},
	)
	out := g.Activate([]float64{0, 1})
	if out[0] != 0.5 {
		t.Errorf("out[0] = %v, want 0.5", out[0])
	}
	if out[1] < 0.99 {
		t.Errorf("out[1] = %v, want near 1", out[1])
	}
}

func TestActivateRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	g := Random(defaultLayers, rng, 1)
	for _, in := range [][]float64{{0, 0, 0}, {1, 1, 1}, {0.3, 0.2, 5}} {
		out := g.Activate(in)
		if len(out) != 1 || out[0] <= 0 || out[0] >= 1 {
			t.Errorf("Activate(%v) = %v, want one value in (0,1)", in, out)
		}
	}
}

func TestActivateDeterministic(t *testing.T) {
	g := Random(defaultLayers, rand.New(rand.NewSource(7)), 1)
	a := g.Activate([]float64{0.4, 0.1, 0.2})
	b := g.Activate([]float64{0.4, 0.1, 0.2})
	if a[0] != b[0] {
		t.Errorf("Activate not deterministic: %v vs %v", a, b)
	}
}

func TestRandomRange(t *testing.T) {
	g := Random(defaultLayers, rand.New(rand.NewSource(1)), 1)
	for i, n := range g.Neurons() {
		if n.Bias < -1 || n.Bias >= 1 {
			t.Errorf("bias %d = %v, want in [-1,1)", i, n.Bias)
		}
	}
	for i, c := range g.Connections() {
		if c.Weight < -1 || c.Weight >= 1 {
			t.Errorf("weight %d = %v, want in [-1,1)", i, c.Weight)
		}
	}
}

func TestGenomeIsImmutable(t *testing.T) {
	neurons := []Neuron{{1}, {2}, {3}}
	conns := []Connection{{0.5}, {0.25}}
	g := MustNew([]int{2, 1}, neurons, conns)
	before := g.Activate([]float64{1, 1})

	neurons[2].Bias = 100
	conns[0].Weight = 100
	got := g.Neurons()
	got[2].Bias = -100
	g.Connections()[1].Weight = -100

	if g.Neurons()[2].Bias != 3 {
		t.Errorf("bias = %v, want 3", g.Neurons()[2].Bias)
	}
	if after := g.Activate([]float64{1, 1}); after[0] != before[0] {
		t.Errorf("Activate changed after caller mutation: %v -> %v", before, after)
	}
}

func TestEqual(t *testing.T) {
	a := Random(defaultLayers, rand.New(rand.NewSource(3)), 1)
	b := MustNew(a.Layers(), a.Neurons(), a.Connections())
	if !a.Equal(b) {
		t.Error("copy should be equal")
	}
	n := b.Neurons()
	n[5].Bias += 1
	c := MustNew(b.Layers(), n, b.Connections())
	if a.Equal(c) {
		t.Error("changed bias should not be equal")
	}
}
