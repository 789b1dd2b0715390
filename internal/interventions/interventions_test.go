package interventions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covid19datasets/internal/sources"
	"covid19datasets/internal/table"
)

func day(d int) time.Time {
	return time.Date(2020, time.January, d, 0, 0, 0, 0, time.UTC)
}

func policies() *table.Table {
	return table.New(
		table.Column{Name: "CountryName", Kind: table.String},
		table.Column{Name: sources.ISOColumn, Kind: table.String},
		table.Column{Name: sources.DateColumn, Kind: table.Date},
		table.Column{Name: "StringencyIndex", Kind: table.Float},
	)
}

func masks() *table.Table {
	return table.New(
		table.Column{Name: "Country", Kind: table.String},
		table.Column{Name: sources.ISOColumn, Kind: table.String},
		table.Column{Name: sources.DateColumn, Kind: table.Date},
		table.Column{Name: "Stringency", Kind: table.Float},
		table.Column{Name: "Source", Kind: table.String},
	)
}

func prepared(t *testing.T, m *table.Table) *table.Table {
	t.Helper()
	out, err := PrepareMasks(m)
	require.NoError(t, err)
	return out
}

func TestPrepareMasks(t *testing.T) {
	out := prepared(t, masks())
	assert.Equal(t, []string{sources.ISOColumn, sources.DateColumn, MasksColumn}, out.Names())

	_, err := PrepareMasks(policies())
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
}

func TestMergeForwardFillsWithinCountry(t *testing.T) {
	p := policies()
	p.MustAppend("A", "AAA", day(1), 10.0)
	p.MustAppend("A", "AAA", day(2), nil)
	p.MustAppend("A", "AAA", day(3), 20.0)

	out, err := Merge(p, prepared(t, masks()))
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())

	assert.Equal(t, 10.0, out.Get(1, "StringencyIndex"))
	assert.Equal(t, 20.0, out.Get(2, "StringencyIndex"))
	assert.Equal(t, 0.0, out.Get(0, MasksColumn), "no mask record defaults to zero")
}

func TestMergeInsertsMissingDays(t *testing.T) {
	p := policies()
	p.MustAppend("A", "AAA", day(3), 20.0)
	p.MustAppend("A", "AAA", day(1), 10.0)

	out, err := Merge(p, prepared(t, masks()))
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())

	idx, err := out.Index(sources.ISOColumn, sources.DateColumn)
	require.NoError(t, err)
	i, ok := idx.Lookup("AAA", day(2))
	require.True(t, ok)
	assert.Equal(t, 10.0, idx.Get(i, "StringencyIndex"))
	assert.Equal(t, "A", idx.Get(i, "CountryName"))
	assert.Equal(t, 0.0, idx.Get(i, MasksColumn))
}

func TestDailySpansEachCountryOnly(t *testing.T) {
	p := policies()
	p.MustAppend("A", "AAA", day(1), 1.0)
	p.MustAppend("A", "AAA", day(4), 4.0)
	p.MustAppend("B", "BBB", day(3), 3.0)
	p.MustAppend("B", "BBB", day(3), 5.0)

	out, err := Daily(p)
	require.NoError(t, err)
	require.Equal(t, 6, out.Len())

	var got []string
	out.Each(func(r table.Row) {
		iso, _ := r.Text(sources.ISOColumn)
		d, _ := r.Time(sources.DateColumn)
		got = append(got, iso+" "+d.Format(table.DateLayout))
	})
	assert.Equal(t, []string{
		"AAA 2020-01-01", "AAA 2020-01-02", "AAA 2020-01-03", "AAA 2020-01-04",
		"BBB 2020-01-03", "BBB 2020-01-03",
	}, got)
	assert.Nil(t, out.Get(1, "StringencyIndex"))
	assert.Nil(t, out.Get(1, "CountryName"))
}

func TestMergeDoesNotLeakAcrossCountries(t *testing.T) {
	p := policies()
	// rows deliberately out of order
	p.MustAppend("B", "BBB", day(2), nil)
	p.MustAppend("A", "AAA", day(1), 50.0)
	p.MustAppend("B", "BBB", day(1), nil)
	p.MustAppend("A", "AAA", day(2), nil)
	p.MustAppend("B", "BBB", day(3), 5.0)

	m := masks()
	m.MustAppend("A", "AAA", day(1), 2.0, "gov")
	m.MustAppend("B", "BBB", day(2), 1.0, "gov")

	out, err := Merge(p, prepared(t, m))
	require.NoError(t, err)
	require.Equal(t, 5, out.Len())

	idx, err := out.Index(sources.ISOColumn, sources.DateColumn)
	require.NoError(t, err)

	get := func(iso string, d int, col string) any {
		i, ok := idx.Lookup(iso, day(d))
		require.True(t, ok)
		return idx.Get(i, col)
	}

	assert.Equal(t, 50.0, get("AAA", 2, "StringencyIndex"))
	assert.Equal(t, 2.0, get("AAA", 2, MasksColumn))

	assert.Equal(t, 0.0, get("BBB", 1, "StringencyIndex"), "AAA's value never reaches BBB")
	assert.Equal(t, 0.0, get("BBB", 2, "StringencyIndex"))
	assert.Equal(t, 0.0, get("BBB", 1, MasksColumn))
	assert.Equal(t, 1.0, get("BBB", 2, MasksColumn))
	assert.Equal(t, 1.0, get("BBB", 3, MasksColumn))
	assert.Equal(t, "B", get("BBB", 1, "CountryName"))
}

func TestMergeRejectsDuplicateMaskKeys(t *testing.T) {
	p := policies()
	p.MustAppend("A", "AAA", day(1), 1.0)

	m := masks()
	m.MustAppend("A", "AAA", day(1), 1.0, "x")
	m.MustAppend("A", "AAA", day(1), 2.0, "y")

	_, err := Merge(p, prepared(t, m))
	assert.ErrorIs(t, err, table.ErrDuplicateKey)
}
