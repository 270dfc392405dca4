package quantity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExtractsFirstInteger(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int
	}{
		{name: "units", in: "80kg", want: 80},
		{name: "empty", in: "", want: 0},
		{name: "nil", in: nil, want: 0},
		{name: "int", in: 75, want: 75},
		{name: "range", in: "8-12 reps", want: 8},
		{name: "words", in: "bodyweight", want: 0},
		{name: "leading text", in: "approx 20 kg", want: 20},
		{name: "float", in: 62.5, want: 62},
		{name: "negative", in: -5, want: 5},
		{name: "numeric value", in: Number(100), want: 100},
		{name: "text value", in: Text("20-25"), want: 20},
		{name: "nil value pointer", in: (*Value)(nil), want: 0},
		{name: "unsupported", in: []int{1}, want: 0},
		{name: "overflow", in: "99999999999999999999999", want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Parse(tc.in))
		})
	}
}

func TestValueJSONKeepsAuthoredForm(t *testing.T) {
	var entry struct {
		Weight Value `json:"weight"`
		Reps   Value `json:"reps"`
		Extra  Value `json:"extra"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"weight":"20-25","reps":12,"extra":null}`), &entry))

	require.False(t, entry.Weight.IsNumeric())
	require.Equal(t, 20, entry.Weight.Int())
	require.True(t, entry.Reps.IsNumeric())
	require.Equal(t, 12, entry.Reps.Int())
	require.True(t, entry.Extra.IsZero())

	out, err := json.Marshal(entry)
	require.NoError(t, err)
	require.JSONEq(t, `{"weight":"20-25","reps":12,"extra":""}`, string(out))
}

func TestValueRejectsObjects(t *testing.T) {
	var v Value
	require.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v))
}

func TestValueOrFallsBackWhenBlank(t *testing.T) {
	require.Equal(t, "10", Value{}.Or(Number(10)).String())
	require.Equal(t, "10", Number(0).Or(Number(10)).String())
	require.Equal(t, "bodyweight", Text("bodyweight").Or(Number(10)).String())
	require.Equal(t, "0", Text("0").Or(Number(10)).String())
}
