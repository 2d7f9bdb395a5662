package analysis

import "math"

// DefaultVolumePeriod is the averaging window used when none is given
const DefaultVolumePeriod = 20

// VolumePressure labels the last candle's volume as buying or selling
type VolumePressure string

const (
	BuyingPressure  VolumePressure = "buying"
	SellingPressure VolumePressure = "selling"
	NeutralPressure VolumePressure = "neutral"
)

// VolumeAnalyzer provides volume context for the last candle in a series
type VolumeAnalyzer struct {
	avgPeriod int // Period for average volume calculation
}

// VolumeProfile represents volume analysis results
type VolumeProfile struct {
	CurrentVolume  float64        `json:"currentVolume"`
	AverageVolume  float64        `json:"averageVolume"`
	VolumeRatio    float64        `json:"volumeRatio"`    // Current / Average
	IsHighVolume   bool           `json:"isHighVolume"`   // Volume > 2x average
	IsClimaxVolume bool           `json:"isClimaxVolume"` // Volume > 3x average
	OBV            float64        `json:"obv"`
	Pressure       VolumePressure `json:"pressure"`
}

// NewVolumeAnalyzer creates a new volume analyzer
func NewVolumeAnalyzer(avgPeriod int) *VolumeAnalyzer {
	if avgPeriod <= 0 {
		avgPeriod = DefaultVolumePeriod
	}
	return &VolumeAnalyzer{avgPeriod: avgPeriod}
}

// AnalyzeVolume returns nil when there are no candles or the series carries
// no volume at all
func (va *VolumeAnalyzer) AnalyzeVolume(candles []Candle) *VolumeProfile {
	if len(candles) == 0 {
		return nil
	}

	avgVolume := va.AverageVolume(candles)
	if avgVolume == 0 {
		return nil
	}

	current := candles[len(candles)-1]
	ratio := current.Volume / avgVolume

	return &VolumeProfile{
		CurrentVolume:  current.Volume,
		AverageVolume:  avgVolume,
		VolumeRatio:    ratio,
		IsHighVolume:   ratio > 2.0,
		IsClimaxVolume: ratio > 3.0,
		OBV:            OnBalanceVolume(candles),
		Pressure:       PressureOf(current),
	}
}

// AverageVolume calculates the mean volume over the trailing period
func (va *VolumeAnalyzer) AverageVolume(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}

	period := va.avgPeriod
	if len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}

// PressureOf identifies if a candle's volume is buying or selling pressure
func PressureOf(c Candle) VolumePressure {
	body := math.Abs(c.Close - c.Open)
	upperWick := c.High - math.Max(c.Open, c.Close)
	lowerWick := math.Min(c.Open, c.Close) - c.Low

	switch {
	case c.IsBullish() && upperWick < body*0.2:
		return BuyingPressure
	case c.IsBearish() && lowerWick < body*0.2:
		return SellingPressure
	}
	return NeutralPressure
}

// OnBalanceVolume adds volume on up closes and subtracts it on down closes
func OnBalanceVolume(candles []Candle) float64 {
	obv := 0.0
	for i := 1; i < len(candles); i++ {
		if candles[i].Close > candles[i-1].Close {
			obv += candles[i].Volume
		} else if candles[i].Close < candles[i-1].Close {
			obv -= candles[i].Volume
		}
	}
	return obv
}
