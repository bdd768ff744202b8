package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDynamicJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    map[string]any
		wantErr bool
	}{
		{
			name: "flat struct",
			input: struct {
				Question string `json:"question"`
				Attempts int    `json:"attempts"`
			}{
				Question: "which size?",
				Attempts: 2,
			},
			want: map[string]any{
				"question": "which size?",
				"attempts": float64(2),
			},
		},
		{
			name: "nested map survives the round trip",
			input: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"size": map[string]any{"type": "string"},
				},
			},
			want: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"size": map[string]any{"type": "string"},
				},
			},
		},
		{
			name:    "unmarshalable input",
			input:   make(chan int),
			wantErr: true,
		},
		{
			name:    "non-object top level",
			input:   []string{"a", "b"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDynamicJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
