// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package serializer

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intSet map[int]struct{}

func (s intSet) Members() []any {
	members := make([]any, 0, len(s))
	for member := range s {
		members = append(members, member)
	}
	return members
}

type studio struct {
	ID   int64  `json:"mal_id"`
	Name string `json:"name"`
}

type Metadata struct {
	Source string
}

type record struct {
	Metadata

	Price    decimal.Decimal  `json:"price"`
	Discount *decimal.Decimal `json:"discount,omitempty"`
	Date     civil.Date       `json:"date"`
	Tags     intSet           `json:"tags"`
	Studios  []studio         `json:"studios"`
	Main     *studio          `json:"main"`
	Fetched  time.Time        `json:"fetched"`
	Extra    map[string]any   `json:"extra"`
	Ignored  string           `json:"-"`
	internal string
}

func TestMarshalRecord(t *testing.T) {
	t.Parallel()

	input := record{
		Metadata: Metadata{Source: "manga"},
		Price:    decimal.RequireFromString("12.50"),
		Date:     civil.Date{Year: 2024, Month: time.January, Day: 1},
		Tags:     intSet{1: {}, 2: {}, 3: {}},
		Studios:  []studio{{ID: 1, Name: "Sunrise"}},
		Fetched:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Extra: map[string]any{
			"nested": studio{ID: 2, Name: "Madhouse"},
			"score":  decimal.RequireFromString("8.750"),
		},
		Ignored:  "ignored",
		internal: "internal",
	}

	payload, err := Marshal(input)
	require.NoError(t, err)

	var output map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &output))

	assert.Equal(t, "12.50", output["price"])
	assert.Equal(t, "2024-01-01", output["date"])
	assert.ElementsMatch(t, []any{float64(1), float64(2), float64(3)}, output["tags"])
	assert.Equal(t, "2024-06-01T12:00:00Z", output["fetched"])
	assert.Equal(t, []any{map[string]any{"mal_id": float64(1), "name": "Sunrise"}}, output["studios"])
	assert.Nil(t, output["main"])
	assert.Nil(t, output["discount"])
	assert.Equal(t, "manga", output["Source"])
	assert.Equal(t, map[string]any{
		"nested": map[string]any{"mal_id": float64(2), "name": "Madhouse"},
		"score":  "8.750",
	}, output["extra"])
	assert.NotContains(t, output, "Ignored")
	assert.NotContains(t, output, "internal")
}

func TestNormalizeValues(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		input    any
		expected any
	}{
		"nil": {
			input:    nil,
			expected: nil,
		},
		"string": {
			input:    "value",
			expected: "value",
		},
		"integer decimal": {
			input:    decimal.NewFromInt(100),
			expected: "100",
		},
		"negative decimal with many digits": {
			input:    decimal.RequireFromString("-0.000000000000000000123400"),
			expected: "-0.000000000000000000123400",
		},
		"date time": {
			input:    civil.DateTime{Date: civil.Date{Year: 2001, Month: time.March, Day: 4}, Time: civil.Time{Hour: 5}},
			expected: "2001-03-04T05:00:00",
		},
		"pointer to set": {
			input:    &intSet{7: {}},
			expected: []any{7},
		},
		"integer keyed map": {
			input:    map[int]string{1: "one"},
			expected: map[string]any{"1": "one"},
		},
		"array": {
			input:    [2]bool{true, false},
			expected: []any{true, false},
		},
		"nil slice": {
			input:    []string(nil),
			expected: nil,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			normalized, err := Normalize(test.input)
			require.NoError(t, err)
			assert.Equal(t, test.expected, normalized)
		})
	}
}

func TestUnsupportedTypes(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		input        any
		expectedType string
	}{
		"channel": {
			input:        make(chan int),
			expectedType: "chan int",
		},
		"function in struct": {
			input: struct {
				Callback func() `json:"callback"`
			}{Callback: func() {}},
			expectedType: "func()",
		},
		"complex number in list": {
			input:        []any{1, complex(1, 2)},
			expectedType: "complex128",
		},
		"not a number": {
			input:        math.NaN(),
			expectedType: "float64 NaN",
		},
		"infinite score in struct": {
			input: struct {
				Score float32 `json:"score"`
			}{Score: float32(math.Inf(1))},
			expectedType: "float32 +Inf",
		},
		"negative infinity in list": {
			input:        []float64{1.5, math.Inf(-1)},
			expectedType: "float64 -Inf",
		},
		"struct keyed map": {
			input:        map[studio]string{{ID: 1}: "value"},
			expectedType: "map[serializer.studio]string",
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Marshal(test.input)
			var serializationErr *SerializationError
			require.ErrorAs(t, err, &serializationErr)
			assert.Equal(t, test.expectedType, serializationErr.Type)
			assert.Contains(t, err.Error(), test.expectedType)
		})
	}
}
