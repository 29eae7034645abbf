package sl

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestSecret_Masks(t *testing.T) {
	assert.Equal(t, "***", Secret("k", "short").Value.String())
	assert.Equal(t, "abc***xyz", Secret("k", "abcdefghxyz").Value.String())
}

func TestErr(t *testing.T) {
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
	assert.Equal(t, "", Err(nil).Value.String())
}
