package adsb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexibleField can hold either a string, a number or a boolean, and
// remembers whether the key was present at all
type FlexibleField struct {
	value any
	set   bool
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleField
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value, f.set = num, true
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value, f.set = str, true
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.value, f.set = b, true
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleField", data)
}

// Present reports whether the field carried a non-null value
func (f *FlexibleField) Present() bool {
	return f.set
}

// Float64 returns the value as a float64 and whether it was numeric
func (f *FlexibleField) Float64() (float64, bool) {
	switch v := f.value.(type) {
	case float64:
		return v, true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Int returns the value truncated to an int
func (f *FlexibleField) Int() int {
	n, _ := f.Float64()
	return int(n)
}

// String returns the value as a string
func (f *FlexibleField) String() string {
	switch v := f.value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Convert turns a snapshot aircraft into an Observation. The current
// position is used when lat, lon, nic, rc and flight are all present;
// otherwise lastPosition is tried, borrowing the current callsign if
// lastPosition has none.
func (a *SnapshotAircraft) Convert() (Observation, bool) {
	if obs, ok := buildObservation(&a.Lat, &a.Lon, &a.NIC, &a.RC, &a.Flight); ok {
		obs.Hex = a.Hex
		return obs, true
	}

	if a.LastPosition == nil {
		return Observation{}, false
	}
	lp := a.LastPosition
	flight := &lp.Flight
	if !flight.Present() {
		flight = &a.Flight
	}
	obs, ok := buildObservation(&lp.Lat, &lp.Lon, &lp.NIC, &lp.RC, flight)
	if !ok {
		return Observation{}, false
	}
	obs.Hex = a.Hex
	return obs, true
}

func buildObservation(lat, lon, nic, rc, flight *FlexibleField) (Observation, bool) {
	if !lat.Present() || !lon.Present() || !nic.Present() || !rc.Present() || !flight.Present() {
		return Observation{}, false
	}

	latV, ok1 := lat.Float64()
	lonV, ok2 := lon.Float64()
	nicV, ok3 := nic.Float64()
	if !ok1 || !ok2 || !ok3 {
		return Observation{}, false
	}

	obs := Observation{
		Lat:    latV,
		Lon:    lonV,
		NIC:    nicV,
		RC:     rc.Int(),
		Flight: normalizeFlight(flight.String()),
	}
	if !obs.ValidPosition() {
		return Observation{}, false
	}
	return obs, true
}
