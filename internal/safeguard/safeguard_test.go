package safeguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeywords(t *testing.T) {
	c := NewChecker(nil, nil)

	assert.True(t, c.IsExplicitlyImportant("URGENT: server down"))
	assert.True(t, c.IsExplicitlyImportant("Your Due Date is approaching"))
	assert.True(t, c.IsExplicitlyImportant("Coding contest results"))
	assert.False(t, c.IsExplicitlyImportant("Weekly sale: 40% off shoes"))
	assert.False(t, c.IsExplicitlyImportant(""))
}

func TestCustomKeywords(t *testing.T) {
	c := NewChecker([]string{"  Invoice ", ""}, nil)

	assert.True(t, c.IsExplicitlyImportant("invoice #12"))
	assert.False(t, c.IsExplicitlyImportant("meeting tomorrow"))
}
