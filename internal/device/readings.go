package device

// Reading field names.
const (
	ReadingOn                = "on"
	ReadingLevel             = "level"
	ReadingPosition          = "position"
	ReadingSyncing           = "syncing"
	ReadingRemainingTime     = "remaining_time"
	ReadingRemainingRuns     = "remaining_runs"
	ReadingWind              = "wind"
	ReadingRain              = "rain"
	ReadingTemperature       = "temperature"
	ReadingIllumination      = "illumination"
	ReadingIlluminationEast  = "illumination_east"
	ReadingIlluminationSouth = "illumination_south"
	ReadingIlluminationWest  = "illumination_west"
)

// Readings flattens a state record into numeric fields for time-series sinks.
// Booleans map to 0/1; absent weather readings are omitted. Illumination
// values are raw gateway units.
func Readings(st State) map[string]float64 {
	out := make(map[string]float64)

	switch s := st.(type) {
	case DimmerState:
		out[ReadingOn] = boolValue(s.On)
		out[ReadingLevel] = float64(s.Level)

	case SwitchState:
		out[ReadingOn] = boolValue(s.On)

	case BlindState:
		out[ReadingPosition] = float64(s.Position)
		out[ReadingSyncing] = boolValue(s.Syncing)
		out[ReadingRemainingTime] = s.RemainingTime
		out[ReadingRemainingRuns] = s.RemainingRuns

	case WeatherState:
		optional(out, ReadingWind, s.Wind)
		optional(out, ReadingTemperature, s.Temperature)
		optional(out, ReadingIllumination, s.Illumination)
		optional(out, ReadingIlluminationEast, s.IlluminationEast)
		optional(out, ReadingIlluminationSouth, s.IlluminationSouth)
		optional(out, ReadingIlluminationWest, s.IlluminationWest)
		if s.RainActive != nil {
			out[ReadingRain] = boolValue(*s.RainActive)
		}
	}
	return out
}

func optional(out map[string]float64, field string, v *float64) {
	if v != nil {
		out[field] = *v
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
