package store

import (
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/abraxasd/abraxas/weather"
)

// maxWeatherFileSize bounds how much of weather_cache.json we'll read,
// matching config.c's MAX_WEATHER_FILE_SIZE.
const maxWeatherFileSize = 8192

// LoadWeatherCache reads weather_cache.json. A present "error" key, a
// missing/oversized file, or a zero fetched_at all yield HasError=true,
// matching config_load_weather_cache's "no error key but fetched_at==0 is
// still an error" rule.
func LoadWeatherCache(path string) weather.Data {
	info, err := os.Stat(path)
	if err != nil || info.Size() <= 0 || info.Size() > maxWeatherFileSize {
		return weather.Data{HasError: true}
	}
	data, err := os.ReadFile(path)
	if err != nil || !gjson.ValidBytes(data) {
		return weather.Data{HasError: true}
	}

	root := gjson.ParseBytes(data)
	d := weather.Data{
		CloudCover:  int(root.Get("cloud_cover").Int()),
		Forecast:    root.Get("forecast").String(),
		Temperature: root.Get("temperature").Float(),
		IsDay:       root.Get("is_day").Bool(),
		FetchedAt:   time.Unix(root.Get("fetched_at").Int(), 0),
		HasError:    root.Get("error").Exists(),
	}
	if !d.HasError && d.FetchedAt.Unix() == 0 {
		d.HasError = true
	}
	return d
}

// SaveWeatherCache writes weather_cache.json. An error result writes the
// compact error form config_save_weather_cache uses; a successful one
// writes the full field set in the same fixed order. Both are built with
// sjson (fixed insertion order) and pretty-printed with tidwall/pretty to
// match the reference writer's indented form.
func SaveWeatherCache(path string, d weather.Data) error {
	var raw string
	var err error

	if d.HasError {
		raw, _ = sjson.Set("{}", "error", "fetch failed")
		raw, _ = sjson.Set(raw, "cloud_cover", 0)
		raw, err = sjson.Set(raw, "fetched_at", d.FetchedAt.Unix())
	} else {
		raw, _ = sjson.Set("{}", "cloud_cover", d.CloudCover)
		raw, _ = sjson.Set(raw, "forecast", d.Forecast)
		raw, _ = sjson.Set(raw, "temperature", d.Temperature)
		raw, _ = sjson.Set(raw, "is_day", d.IsDay)
		raw, err = sjson.Set(raw, "fetched_at", d.FetchedAt.Unix())
	}
	if err != nil {
		return fmt.Errorf("store: encode weather cache: %w", err)
	}

	if err := os.WriteFile(path, pretty.Pretty([]byte(raw)), 0644); err != nil {
		return fmt.Errorf("store: save weather cache: %w", err)
	}
	return nil
}
