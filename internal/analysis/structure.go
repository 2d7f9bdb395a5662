package analysis

// EventType distinguishes continuation breaks from reversal breaks
type EventType string

const (
	BOS   EventType = "BOS"
	CHOCH EventType = "CHOCH"
)

// StructureEvent is a swing that strictly breached the prior same-side swing
type StructureEvent struct {
	Type        EventType      `json:"type"`
	Direction   Direction      `json:"direction"`
	BrokenLevel float64        `json:"brokenLevel"`
	AtIndex     int            `json:"atIndex"`
	Time        int64          `json:"time"`
	FromSwing   StructurePoint `json:"fromSwing"`
	ToSwing     StructurePoint `json:"toSwing"`
}

// DetectStructureEvents walks swings in order and classifies each break of a
// prior swing high or low.
//
// A higher swing high is a BOS while the prevailing trend is not bearish and a
// CHOCH when it is; lower swing lows mirror this. The first break out of RANGE
// counts as BOS. A breach equal to the prior extreme is not a break.
func DetectStructureEvents(swings []StructurePoint) []StructureEvent {
	events := make([]StructureEvent, 0)

	var lastHigh, lastLow *StructurePoint
	trend := Range

	for i := range swings {
		swing := swings[i]

		switch swing.Type {
		case SwingHigh:
			if lastHigh != nil && swing.Price > lastHigh.Price {
				eventType := BOS
				if trend == Bearish {
					eventType = CHOCH
				}
				events = append(events, newStructureEvent(eventType, Bullish, *lastHigh, swing))
				trend = Bullish
			}
			lastHigh = &swings[i]

		case SwingLow:
			if lastLow != nil && swing.Price < lastLow.Price {
				eventType := BOS
				if trend == Bullish {
					eventType = CHOCH
				}
				events = append(events, newStructureEvent(eventType, Bearish, *lastLow, swing))
				trend = Bearish
			}
			lastLow = &swings[i]
		}
	}

	return events
}

func newStructureEvent(t EventType, d Direction, from, to StructurePoint) StructureEvent {
	return StructureEvent{
		Type:        t,
		Direction:   d,
		BrokenLevel: from.Price,
		AtIndex:     to.Index,
		Time:        to.Time,
		FromSwing:   from,
		ToSwing:     to,
	}
}

// LastEvent returns the most recent event and false when there are none
func LastEvent(events []StructureEvent) (StructureEvent, bool) {
	if len(events) == 0 {
		return StructureEvent{}, false
	}
	return events[len(events)-1], true
}
