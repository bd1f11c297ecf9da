package eltako

import (
	"math"
	"strconv"

	"github.com/nerrad567/eltako2mqtt/internal/device"
)

// State topic field names, published under <ns>/<id>/<field>.
const (
	FieldRSSI              = "rssi"
	FieldState             = "state"
	FieldBrightness        = "brightness"
	FieldSync              = "sync"
	FieldRemainingRuns     = "rv"
	FieldRemainingTime     = "rt"
	FieldWind              = "wind"
	FieldRain              = "rain"
	FieldTemperature       = "temperature"
	FieldIllumination      = "illumination"
	FieldIlluminationEast  = "illumination_east"
	FieldIlluminationSouth = "illumination_south"
	FieldIlluminationWest  = "illumination_west"
)

const (
	payloadOn  = "on"
	payloadOff = "off"

	// klux readings from the directional sensors are published in lux.
	luxPerKilolux = 1000
)

// TopicValue is a single state field ready for publication.
type TopicValue struct {
	Field string
	Value string
}

// StateValues flattens a device snapshot into topic/value pairs.
// All values come from the one snapshot passed in. Dimmer brightness is
// published in the range scale advertises through discovery.
func StateValues(d *device.Device, scale DimmerScale) []TopicValue {
	values := []TopicValue{{FieldRSSI, strconv.Itoa(d.RSSI)}}

	switch st := d.State.(type) {
	case device.DimmerState:
		values = append(values,
			TopicValue{FieldState, onOff(st.On)},
			TopicValue{FieldBrightness, strconv.Itoa(scale.Brightness(st.Level))},
		)

	case device.SwitchState:
		values = append(values, TopicValue{FieldState, onOff(st.On)})

	case device.BlindState:
		values = append(values,
			TopicValue{FieldState, strconv.Itoa(device.ClampPercent(st.Position))},
			TopicValue{FieldSync, strconv.FormatBool(st.Syncing)},
			TopicValue{FieldRemainingRuns, formatFloat(st.RemainingRuns)},
			TopicValue{FieldRemainingTime, formatFloat(st.RemainingTime)},
		)

	case device.WeatherState:
		if st.Wind != nil {
			values = append(values, TopicValue{FieldWind, formatFloat(*st.Wind)})
		}
		if st.RainActive != nil {
			values = append(values, TopicValue{FieldRain, strconv.FormatBool(*st.RainActive)})
		}
		if st.Temperature != nil {
			values = append(values, TopicValue{FieldTemperature, formatFloat(*st.Temperature)})
		}
		if st.Illumination != nil {
			values = append(values, TopicValue{FieldIllumination, formatRounded(*st.Illumination)})
		}
		if st.IlluminationEast != nil {
			values = append(values, TopicValue{FieldIlluminationEast, formatRounded(*st.IlluminationEast * luxPerKilolux)})
		}
		if st.IlluminationSouth != nil {
			values = append(values, TopicValue{FieldIlluminationSouth, formatRounded(*st.IlluminationSouth * luxPerKilolux)})
		}
		if st.IlluminationWest != nil {
			values = append(values, TopicValue{FieldIlluminationWest, formatRounded(*st.IlluminationWest * luxPerKilolux)})
		}
	}

	return values
}

func onOff(on bool) string {
	if on {
		return payloadOn
	}
	return payloadOff
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatRounded(v float64) string {
	return strconv.FormatInt(int64(math.Round(v)), 10)
}
