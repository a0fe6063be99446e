package calculator

import (
	"errors"
	"math"

	"PaperPilot/internal/model"
)

// RecentRange scans the most recent n bars and returns the high and low.
func RecentRange(bars []model.OHLCV, n int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	start := len(bars) - n
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < len(bars); i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low, nil
}

// RangePosition returns where the current price sits within a range (0.0~1.0).
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}

// AverageVolume returns the mean volume of the most recent n bars.
func AverageVolume(bars []model.OHLCV, n int) (float64, error) {
	if len(bars) == 0 {
		return 0, errors.New("no bars provided")
	}
	start := len(bars) - n
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for i := start; i < len(bars); i++ {
		sum += bars[i].Volume
	}
	return sum / float64(len(bars)-start), nil
}
