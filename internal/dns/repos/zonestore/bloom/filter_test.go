package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name  string
		n     uint64
		p     float64
		wantM uint64
		wantK uint8
	}{
		{"1000 at 1%", 1000, 0.01, 9586, 7},
		{"zero capacity treated as one", 0, 0.01, 10, 7},
		{"invalid rate falls back to default", 1000, 0, 9586, 7},
		{"rate above one falls back", 1000, 1.5, 9586, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, k := size(tt.n, tt.p)
			assert.Equal(t, tt.wantM, m)
			assert.Equal(t, tt.wantK, k)
		})
	}
}

func TestFilter_NoFalseNegatives(t *testing.T) {
	names := make([]string, 0, 500)
	for i := 0; i < 500; i++ {
		names = append(names, fmt.Sprintf("zone%d.example.", i))
	}
	f := Build(names, 0.01)
	for _, n := range names {
		assert.True(t, f.MightContain(n), n)
	}
}

func TestFilter_RejectsMostAbsentNames(t *testing.T) {
	f := Build([]string{"example.com.", "example.local."}, 0.001)
	hits := 0
	for i := 0; i < 1000; i++ {
		if f.MightContain(fmt.Sprintf("absent%d.test.", i)) {
			hits++
		}
	}
	assert.Less(t, hits, 50)
}

func TestFilter_EmptyAndNil(t *testing.T) {
	f := Build(nil, 0.01)
	assert.False(t, f.MightContain("example.com."))

	var nilFilter *Filter
	assert.True(t, nilFilter.MightContain("example.com."))
}
