package scoring

import (
	"errors"
	"fmt"

	"github.com/dyike/CortexAdvisor/models"
)

var ErrThresholdOrder = errors.New("rating thresholds must satisfy buy > hold > watch")

// Thresholds are the inclusive lower bounds of the Buy, Hold and Watch bands.
type Thresholds struct {
	Buy   float64 `json:"buy" yaml:"buy" koanf:"buy"`
	Hold  float64 `json:"hold" yaml:"hold" koanf:"hold"`
	Watch float64 `json:"watch" yaml:"watch" koanf:"watch"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Buy: 80, Hold: 60, Watch: 40}
}

func (t Thresholds) Validate() error {
	if !(t.Buy > t.Hold && t.Hold > t.Watch) {
		return fmt.Errorf("%w: got buy=%v hold=%v watch=%v", ErrThresholdOrder, t.Buy, t.Hold, t.Watch)
	}
	return nil
}

// Classify maps an overall score onto a rating. A score equal to a
// threshold lands in the better band.
func Classify(overall float64, t Thresholds) models.Rating {
	switch {
	case overall >= t.Buy:
		return models.RatingBuy
	case overall >= t.Hold:
		return models.RatingHold
	case overall >= t.Watch:
		return models.RatingWatch
	default:
		return models.RatingAvoid
	}
}
