package model

import (
	"testing"

	"github.com/zeebo/assert"
)

func TestJSONStringArrayValue(t *testing.T) {
	value, err := JSONStringArray{"vulnerabilities", "source"}.Value()
	assert.NoError(t, err)
	assert.Equal(t, `["vulnerabilities","source"]`, string(value.([]byte)))

	value, err = JSONStringArray{}.Value()
	assert.NoError(t, err)
	assert.Nil(t, value)
}

func TestJSONStringArrayScan(t *testing.T) {
	var kinds JSONStringArray
	assert.NoError(t, kinds.Scan([]byte(`["vulnerabilities","source"]`)))
	assert.DeepEqual(t, JSONStringArray{"vulnerabilities", "source"}, kinds)

	assert.NoError(t, kinds.Scan(nil))
	assert.Nil(t, kinds)

	assert.Error(t, kinds.Scan(42))
	assert.Error(t, kinds.Scan([]byte("{not json")))
}
