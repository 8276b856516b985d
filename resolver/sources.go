package resolver

import (
	"github.com/angas/solarcast/ccee"
	"github.com/angas/solarcast/inmet"
	"github.com/angas/solarcast/ons"
	"github.com/angas/solarcast/openweather"
	"github.com/angas/solarcast/pvgis"
	"github.com/angas/solarcast/source"
	"github.com/angas/solarcast/types"
	"github.com/angas/solarcast/types/maybe"
)

// Source pairs a connector with the key it is queried for.
type Source struct {
	Connector *source.Connector
	Key       string
}

// Sources is everything the resolver may consult. Climate is in preference
// order; the last entry also provides synthetic climate.
type Sources struct {
	Grid    Source
	Market  Source
	Climate []Source
}

type Endpoints struct {
	Ons         ons.Config
	Ccee        ccee.Config
	OpenWeather string
	Pvgis       string
	Inmet       string
}

type Settings struct {
	Region         string
	Submarket      string
	Station        string
	Coordinates    maybe.Maybe[types.Coordinates]
	OpenWeatherKey string
	Endpoints      Endpoints
	Params         source.Params
	Cache          *source.Cache
	Observer       source.Observer
}

// NewSources builds the connector set for the given settings. OpenWeather is
// only consulted with an API key and coordinates, PVGIS only with coordinates.
func NewSources(s Settings) Sources {
	var opts []source.Option
	opts = append(opts, source.WithSeed(s.Params.Seed))
	if s.Cache != nil {
		opts = append(opts, source.WithCache(s.Cache))
	}
	if s.Observer != nil {
		opts = append(opts, source.WithObserver(s.Observer))
	}

	res := Sources{
		Grid:   Source{Connector: ons.Connector(s.Endpoints.Ons, s.Params, opts...), Key: ons.Key(s.Region)},
		Market: Source{Connector: ccee.Connector(s.Endpoints.Ccee, s.Params, opts...), Key: ccee.Key(s.Submarket)},
	}

	if s.Coordinates.IsValid() {
		coord := s.Coordinates.Value()
		if s.OpenWeatherKey != "" {
			res.Climate = append(res.Climate, Source{
				Connector: openweather.Connector(s.Endpoints.OpenWeather, s.OpenWeatherKey, coord, s.Params, opts...),
				Key:       openweather.Key(coord),
			})
		}
		res.Climate = append(res.Climate, Source{
			Connector: pvgis.Connector(s.Endpoints.Pvgis, coord, s.Params, opts...),
			Key:       pvgis.Key(coord),
		})
	}
	res.Climate = append(res.Climate, Source{
		Connector: inmet.Connector(s.Endpoints.Inmet, s.Params, opts...),
		Key:       inmet.Key(s.Station),
	})

	return res
}
