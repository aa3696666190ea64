package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"nil stays nil", nil, nil},
		{"single broker", []string{"localhost:9092"}, []string{"localhost:9092"}},
		{"trims padding", []string{" a ", "b  ", "  c"}, []string{"a", "b", "c"}},
		{"first occurrence wins", []string{"b", "a", "b", "c", "a"}, []string{"b", "a", "c"}},
		{"drops blanks", []string{"a", "", "   ", "b"}, []string{"a", "b"}},
		{"case sensitive", []string{"Kafka", "kafka"}, []string{"Kafka", "kafka"}},
		{"trim then dedupe", []string{"a", " a", "a "}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.input))
		})
	}
}
