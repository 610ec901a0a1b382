package dataset

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weatherCSV = `outlook,temperature,humidity,windy,play
sunny,85,85,false,no
sunny,80,90,true,no
overcast,83,86,false,yes
rainy,70,96,false,yes
rainy,68,80,false,yes
rainy,65,70,true,no
overcast,64,65,true,yes
sunny,72,95,false,no
sunny,69,70,false,yes
rainy,75,?,false,yes
sunny,75,70,true,yes
overcast,72,90,true,yes
overcast,81,75,false,yes
rainy,71,91,true,no
`

func loadWeather(t *testing.T) *Instances {
	t.Helper()
	d, err := ReadCSV(strings.NewReader(weatherCSV), CSVOptions{Relation: "weather"})
	require.NoError(t, err)
	return d
}

func TestReadCSV_InfersSchema(t *testing.T) {
	d := loadWeather(t)

	assert.Equal(t, "weather", d.Relation())
	assert.Equal(t, 5, d.NumAttributes())
	assert.Equal(t, 14, d.Len())
	assert.Equal(t, 4, d.ClassIndex())

	outlook, err := d.AttributeByName("outlook")
	require.NoError(t, err)
	assert.True(t, outlook.IsNominal())
	assert.Equal(t, []string{"overcast", "rainy", "sunny"}, outlook.Values())

	temp, err := d.AttributeByName("temperature")
	require.NoError(t, err)
	assert.True(t, temp.IsNumeric())

	assert.True(t, d.At(9).IsMissing(2), "? must be read as missing")
	assert.InDelta(t, 14.0, d.SumOfWeights(), 1e-9)
}

func TestReadCSV_ClassSelection(t *testing.T) {
	tests := []struct {
		name      string
		class     string
		wantIndex int
		wantErr   error
	}{
		{name: "last column by default", class: "", wantIndex: 4},
		{name: "by name", class: "windy", wantIndex: 3},
		{name: "none", class: "-", wantIndex: -1},
		{name: "unknown", class: "nope", wantErr: ErrUnknownAttribute},
		{name: "numeric class rejected", class: "temperature", wantErr: ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ReadCSV(strings.NewReader(weatherCSV), CSVOptions{Class: tt.class})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIndex, d.ClassIndex())
		})
	}
}

func TestInstance_ClassValueContract(t *testing.T) {
	d, err := ReadCSV(strings.NewReader(weatherCSV), CSVOptions{Class: "-"})
	require.NoError(t, err)

	_, _, err = d.At(0).ClassValue()
	assert.ErrorIs(t, err, ErrClassUnassigned)

	require.NoError(t, d.SetClass("outlook"))
	v, ok, err := d.At(0).ClassValue()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sunny", d.Attribute(0).Value(int(v)))

	missing := d.At(0).WithValue(0, Missing)
	_, ok, err = missing.ClassValue()
	require.NoError(t, err, "a missing class value is not a contract violation")
	assert.False(t, ok)
}

func TestInstances_CountClass(t *testing.T) {
	d := loadWeather(t)
	class, err := d.ClassAttribute()
	require.NoError(t, err)

	yes, _ := class.IndexOfValue("yes")
	no, _ := class.IndexOfValue("no")
	assert.InDelta(t, 9.0, d.CountClass(float64(yes)), 1e-9)
	assert.InDelta(t, 5.0, d.CountClass(float64(no)), 1e-9)

	counts, err := d.ClassCounts()
	require.NoError(t, err)
	assert.InDelta(t, 14.0, counts[0]+counts[1], 1e-9)
}

func TestInstances_PartitionIsExhaustiveAndDisjoint(t *testing.T) {
	d := loadWeather(t)
	windy := func(inst *Instance) bool { return inst.Value(3) == 1 }

	matching, rest := d.Partition(windy)
	assert.Equal(t, d.Len(), matching.Len()+rest.Len())

	seen := make(map[*Instance]int)
	for _, inst := range matching.All() {
		seen[inst]++
		assert.True(t, windy(inst))
	}
	for _, inst := range rest.All() {
		seen[inst]++
		assert.False(t, windy(inst))
	}
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestInstances_SplitGrowPrune(t *testing.T) {
	d := loadWeather(t)

	grow, prune := d.SplitGrowPrune(2.0/3.0, rand.New(rand.NewSource(1)))
	assert.Equal(t, 9, grow.Len())
	assert.Equal(t, 5, prune.Len())
	assert.True(t, grow.SameSchema(d))

	// same seed, same split
	grow2, _ := d.SplitGrowPrune(2.0/3.0, rand.New(rand.NewSource(1)))
	for i := range grow.All() {
		assert.Same(t, grow.At(i), grow2.At(i))
	}

	all, none := d.SplitGrowPrune(1, rand.New(rand.NewSource(1)))
	assert.Equal(t, d.Len(), all.Len())
	assert.Equal(t, 0, none.Len())
}

func TestInstances_StratifyKeepsEveryInstance(t *testing.T) {
	d := loadWeather(t)
	s := d.Stratify(3, rand.New(rand.NewSource(7)))
	require.Equal(t, d.Len(), s.Len())

	seen := make(map[*Instance]bool)
	for _, inst := range s.All() {
		seen[inst] = true
	}
	assert.Len(t, seen, d.Len())
}

func TestInstances_AddValidates(t *testing.T) {
	d, err := New("toy", []*Attribute{
		NewNominalAttribute("color", []string{"red", "green"}),
		NewNumericAttribute("size"),
	})
	require.NoError(t, err)

	_, err = d.Add([]float64{0, 1.5}, 1)
	require.NoError(t, err)

	_, err = d.Add([]float64{2, 1.5}, 1)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = d.Add([]float64{0}, 1)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = d.Add([]float64{0, 1}, -1)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = New("dup", []*Attribute{NewNumericAttribute("a"), NewNumericAttribute("a")})
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestReadCSVLike_MapsUnknownValuesToMissing(t *testing.T) {
	train := loadWeather(t)
	test := "play,outlook,temperature\nyes,foggy,70\nno,sunny,?\n"

	d, err := ReadCSVLike(strings.NewReader(test), train, CSVOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, d.Len())
	assert.True(t, d.SameSchema(train))
	assert.True(t, d.At(0).IsMissing(0), "foggy is not in the outlook domain")
	assert.True(t, d.At(0).IsMissing(2), "humidity column is absent")
	assert.True(t, d.At(1).IsMissing(1))
	assert.Equal(t, "sunny", train.Attribute(0).Format(d.At(1).Value(0)))
}

func TestDistinctValues(t *testing.T) {
	d := loadWeather(t)
	values := d.DistinctValues(2)
	assert.Equal(t, 10, len(values))
	assert.IsIncreasing(t, values)
}
