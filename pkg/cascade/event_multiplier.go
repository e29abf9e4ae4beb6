package cascade

import "github.com/jihwankim/resilience-core/pkg/graph"

// eventMultiplier scales an edge's base hazard contribution by event kind,
// severity and the upstream node's sector, bounded to [0.5, 3.0]. Hurricanes
// and floods amplify outdoor-facing dependencies (power, transport);
// earthquakes amplify transport and water; cyberattacks amplify telecom;
// power outages amplify power. Any other kind/sector pair uses the flat
// severity-driven multiplier.
func eventMultiplier(ev Event, upstream graph.Node) float64 {
	base := 1.0 + ev.Severity // severity in [0,1] -> base in [1,2]

	switch ev.Kind {
	case EventHurricane, EventFlood:
		if upstream.Kind == graph.KindPower || upstream.Kind == graph.KindTransport {
			base *= 1.5
		}
	case EventEarthquake:
		if upstream.Kind == graph.KindTransport || upstream.Kind == graph.KindWater {
			base *= 1.4
		}
	case EventCyberattack:
		if upstream.Kind == graph.KindTelecom {
			base *= 1.6
		}
	case EventPowerOutage:
		if upstream.Kind == graph.KindPower {
			base *= 1.3
		}
	}

	if ev.Environment != nil {
		if ev.Environment.WindSpeedKMH != nil && *ev.Environment.WindSpeedKMH > 100 {
			base *= 1.1
		}
		if ev.Environment.PrecipitationMM != nil && *ev.Environment.PrecipitationMM > 50 {
			base *= 1.1
		}
	}

	if base < 0.5 {
		return 0.5
	}
	if base > 3.0 {
		return 3.0
	}
	return base
}
