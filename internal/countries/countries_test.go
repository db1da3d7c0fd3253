package countries

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected string
	}{
		{name: "alpha-2 code", code: "PK", expected: "Pakistan"},
		{name: "code with whitespace", code: " AE ", expected: "United Arab Emirates"},
		{name: "unknown code passes through", code: "ZZ", expected: "ZZ"},
		{name: "empty code passes through", code: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Name(tt.code))
		})
	}
}
