package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddress_Validate(t *testing.T) {
	valid := Address{Street: "1 Main St", City: "Springfield", ZipCode: "12345"}
	assert.NoError(t, valid.Validate())

	err := Address{Street: "  ", City: "Springfield"}.Validate()
	assert.ErrorIs(t, err, ErrStreetRequired)
	assert.ErrorIs(t, err, ErrZipCodeRequired)
	assert.NotErrorIs(t, err, ErrCityRequired)
}

func TestDefault(t *testing.T) {
	tests := []struct {
		name       string
		list       []Address
		expectedID int64
		found      bool
	}{
		{"empty book", nil, 0, false},
		{"no default falls back to first", []Address{{ID: 3}, {ID: 4}}, 3, true},
		{"default wins", []Address{{ID: 3}, {ID: 4, IsDefault: true}}, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := Default(tt.list)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expectedID, a.ID)
		})
	}
}

func TestFindAndCountDefaults(t *testing.T) {
	list := []Address{{ID: 1, IsDefault: true}, {ID: 2}, {ID: 3, IsDefault: true}}

	a, ok := Find(list, 2)
	assert.True(t, ok)
	assert.Equal(t, int64(2), a.ID)

	_, ok = Find(list, 9)
	assert.False(t, ok)

	assert.Equal(t, 2, CountDefaults(list))
}
