package analysis

import (
	"fmt"
	"time"
)

// Killzone names a daily window of elevated expected activity
type Killzone string

const (
	LondonOpen Killzone = "LONDON_OPEN"
	NYOpen     Killzone = "NY_OPEN"
	AsiaRange  Killzone = "ASIA_RANGE"
	NoKillzone Killzone = "NONE"
)

// MaxTimezoneOffsetMinutes bounds the accepted offset to real-world zones (UTC+/-14)
const MaxTimezoneOffsetMinutes = 14 * 60

const minutesPerDay = 24 * 60

// SessionWindow is a time-of-day range formatted as HH:MM
type SessionWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SessionState describes which killzone, if any, contains a timestamp
type SessionState struct {
	Killzone Killzone      `json:"killzone"`
	IsActive bool          `json:"isActive"`
	Window   SessionWindow `json:"window"`
}

type killzoneWindow struct {
	zone     Killzone
	startMin int
	endMin   int // exclusive
}

// killzones are fixed clock ranges, compared against the offset-adjusted time of day
var killzones = []killzoneWindow{
	{zone: AsiaRange, startMin: 0, endMin: 5 * 60},
	{zone: LondonOpen, startMin: 7 * 60, endMin: 10 * 60},
	{zone: NYOpen, startMin: 12 * 60, endMin: 15 * 60},
}

// SessionAt maps a unix-ms timestamp shifted by tzOffsetMinutes onto a killzone
func SessionAt(unixMs int64, tzOffsetMinutes int) (SessionState, error) {
	if tzOffsetMinutes > MaxTimezoneOffsetMinutes || tzOffsetMinutes < -MaxTimezoneOffsetMinutes {
		return SessionState{}, fmt.Errorf("%w: %d", ErrInvalidTimezoneOffset, tzOffsetMinutes)
	}

	msPerMinute := int64(time.Minute / time.Millisecond)
	adjusted := unixMs + int64(tzOffsetMinutes)*msPerMinute
	// floor to whole minutes so pre-epoch timestamps land on the right day
	minutes := (adjusted - floorMod(adjusted, msPerMinute)) / msPerMinute
	minuteOfDay := int(floorMod(minutes, minutesPerDay))

	for _, kz := range killzones {
		if minuteOfDay >= kz.startMin && minuteOfDay < kz.endMin {
			return SessionState{
				Killzone: kz.zone,
				IsActive: true,
				Window:   SessionWindow{Start: clock(kz.startMin), End: clock(kz.endMin)},
			}, nil
		}
	}

	return SessionState{Killzone: NoKillzone}, nil
}

// InactiveSession is the state used when there is no timestamp to evaluate
func InactiveSession() SessionState {
	return SessionState{Killzone: NoKillzone}
}

func floorMod(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

func clock(minuteOfDay int) string {
	return fmt.Sprintf("%02d:%02d", minuteOfDay/60, minuteOfDay%60)
}
