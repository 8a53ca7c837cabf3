package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRatingCodes_Entries(t *testing.T) {
	m := DefaultRatingCodes()
	assert.Equal(t, 13, m.Len(), "说明语句条数")

	code, ok := m.Lookup("Suitable for general audiences")
	assert.True(t, ok)
	assert.Equal(t, "G", code)

	code, ok = m.Lookup("  Restricted to persons 16 years and over  ")
	assert.True(t, ok, "首尾空白应被忽略")
	assert.Equal(t, "R16", code)

	code, ok = m.LookupLabel("Parental Guidance")
	assert.True(t, ok)
	assert.Equal(t, "PG", code)

	assert.True(t, m.IsCode("RP18"))
	assert.False(t, m.IsCode("Suitable for general audiences"))
}

func TestRatingCodeMap_WithOverridesDoesNotMutate(t *testing.T) {
	base := DefaultRatingCodes()
	over := base.WithOverrides(map[string]string{"Objectionable": "X"}, nil)

	_, ok := base.Lookup("Objectionable")
	assert.False(t, ok, "WithOverrides 不应修改原映射表")

	code, ok := over.Lookup("Objectionable")
	assert.True(t, ok)
	assert.Equal(t, "X", code)
	assert.True(t, over.IsCode("X"), "覆盖后的短码应进入值集合")
}

func TestNewRatingCodeMap_CopiesInput(t *testing.T) {
	in := map[string]string{"A": "1"}
	m := NewRatingCodeMap(in, nil)
	in["A"] = "2"

	code, _ := m.Lookup("A")
	assert.Equal(t, "1", code, "构造后修改入参不应影响映射表")
}
