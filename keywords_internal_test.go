package sikulibridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartPortArg(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want int
	}{
		{"no args", nil, 0},
		{"nil", []interface{}{nil}, 0},
		{"None", []interface{}{"None"}, 0},
		{"none lowercase", []interface{}{" none "}, 0},
		{"empty", []interface{}{""}, 0},
		{"string", []interface{}{"5123"}, 5123},
		{"int", []interface{}{5123}, 5123},
		{"int64", []interface{}{int64(5123)}, 5123},
		{"float", []interface{}{float64(5123)}, 5123},
		{"zero", []interface{}{0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := startPortArg(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartPortArgInvalid(t *testing.T) {
	for _, args := range [][]interface{}{
		{"abc"},
		{-1},
		{70000},
		{true},
		{1.5},
		{1, 2},
	} {
		_, err := startPortArg(args)
		assert.Error(t, err, "%v", args)
	}
}
