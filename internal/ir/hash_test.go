package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseFingerprint_Deterministic(t *testing.T) {
	a := ResponseFingerprint([]byte(`{"next":{"unit_price":115}}`))
	b := ResponseFingerprint([]byte(`{"next":{"unit_price":115}}`))
	c := ResponseFingerprint([]byte(`{"next":{"unit_price":116}}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestHashWithDomain_Separation(t *testing.T) {
	data := []byte("payload")
	assert.NotEqual(t, hashWithDomain("erpgate/response/v1", data), hashWithDomain("erpgate/response/v2", data))
}
