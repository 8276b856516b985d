package pvgis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/source"
	"github.com/angas/solarcast/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var coord = types.Coordinates{Latitude: -23.5505, Longitude: -46.6333}

func TestFetchAveragesHourlyIrradiance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2020", q.Get("startyear"))
		assert.Equal(t, "0", q.Get("pvcalculation"))
		assert.Equal(t, "PVGIS-SARAH2", q.Get("raddatabase"))
		w.Write([]byte(`{"outputs":{"hourly":[
			{"time":"20200101:1010","G(i)":400.0,"Gb(i)":200.0,"Gd(i)":100.0},
			{"time":"20200101:1110","G(i)":600.0,"Gb(i)":300.0,"Gd(i)":150.0},
			{"time":"20200102:1010","G(i)":0.0,"Gb(i)":0.0,"Gd(i)":0.0},
			{"time":"20200105:1010","G(i)":999.0,"Gb(i)":0.0,"Gd(i)":0.0}
		]}}`))
	}))
	defer srv.Close()

	start, _ := days.Parse("2020-01-01")
	end, _ := days.Parse("2020-01-02")
	b, err := New(srv.URL, coord, source.DefaultParams()).
		Fetch(context.Background(), source.Request{Key: Key(coord), Start: start, End: end})
	require.NoError(t, err)

	ghi, ok := b.Get(series.Irradiance)
	require.True(t, ok)
	assert.Equal(t, []float64{500, 0}, ghi.Values())
	dhi, _ := b.Get(series.DiffuseIrr)
	assert.Equal(t, []float64{125, 0}, dhi.Values())
}

func TestFetchAcceptsDailyOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"outputs":{"daily":[{"year":2020,"month":1,"day":1,"G(i)":321.0}]}}`))
	}))
	defer srv.Close()

	start, _ := days.Parse("2020-01-01")
	b, err := New(srv.URL, coord, source.DefaultParams()).
		Fetch(context.Background(), source.Request{Key: Key(coord), Start: start, End: start})
	require.NoError(t, err)
	ghi, _ := b.Get(series.Irradiance)
	assert.Equal(t, []float64{321}, ghi.Values())
}

func TestFetchOutOfRangeIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"outputs":{"hourly":[]}}`))
	}))
	defer srv.Close()

	start, _ := days.Parse("2020-01-01")
	_, err := New(srv.URL, coord, source.DefaultParams()).
		Fetch(context.Background(), source.Request{Key: Key(coord), Start: start, End: start})
	assert.Error(t, err)
}

func TestSimulatorNonNegative(t *testing.T) {
	start, _ := days.Parse("2024-01-01")
	end, _ := days.Parse("2024-12-31")
	b := Simulator{Coord: coord}.Simulate(source.Request{Key: Key(coord), Start: start, End: end}, source.NewRand(42))
	ghi, ok := b.Get(series.Irradiance)
	require.True(t, ok)
	assert.Equal(t, 366, ghi.Len())
	for _, v := range ghi.Values() {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}
