package inmet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAggregatesHourlyObservations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/estacao/2024-01-01/2024-01-01/A701", r.URL.Path)
		w.Write([]byte(`[
			{"DT_MEDICAO":"2024-01-01","HR_MEDICAO":"0000","TEM_INS":"20.0","VEN_VEL":"1.0","RAD_GLO":null},
			{"DT_MEDICAO":"2024-01-01","HR_MEDICAO":"1200","TEM_INS":"30.0","VEN_VEL":"3.0","RAD_GLO":"3600"}
		]`))
	}))
	defer srv.Close()

	start, _ := days.Parse("2024-01-01")
	b, err := New(srv.URL, source.DefaultParams()).
		Fetch(context.Background(), source.Request{Key: Key("A701"), Start: start, End: start})
	require.NoError(t, err)

	temp, ok := b.Get(series.Temperature)
	require.True(t, ok)
	assert.Equal(t, []float64{25}, temp.Values())
	wind, _ := b.Get(series.Wind)
	assert.Equal(t, []float64{2}, wind.Values())
	ghi, _ := b.Get(series.Irradiance)
	assert.InDeltaSlice(t, []float64{500}, ghi.Values(), 1e-9)
}

func TestFetchEmptyStation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	start, _ := days.Parse("2024-01-01")
	_, err := New(srv.URL, source.DefaultParams()).
		Fetch(context.Background(), source.Request{Key: "A701", Start: start, End: start})
	assert.Error(t, err)
}

func TestSimulatorDeterministic(t *testing.T) {
	start, _ := days.Parse("2024-01-01")
	end, _ := days.Parse("2024-03-01")
	req := source.Request{Key: "A701", Start: start, End: end}
	assert.Equal(t, Simulator{}.Simulate(req, source.NewRand(42)), Simulator{}.Simulate(req, source.NewRand(42)))
}
