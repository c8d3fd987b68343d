package simulation

import "homewatt/internal/domain"

// Device is a placed device instance. On is cosmetic for furniture and
// ignored for always-on kinds, which follow the duty cycle.
type Device struct {
	ID   int
	Kind DeviceKind
	X    float64
	Y    float64
	On   bool
}

// Fixture is a built-in lamp that exists independently of placed
// devices (the floor plan's wired lighting points).
type Fixture struct {
	On bool
}

// samplePower computes the instantaneous total draw and the per-device
// detail list. Pure function of the registry and the duty toggle.
func samplePower(devices []*Device, fixtures []*Fixture, fixtureKind DeviceKind, dutyRunning bool) (float64, domain.DeviceList) {
	total := 0.0
	details := make(domain.DeviceList, 0, len(fixtures)+len(devices))

	for _, f := range fixtures {
		power := 0.0
		state := "OFF"
		if f.On {
			power = fixtureKind.Wattage
			state = "ON"
		}
		total += power
		details = append(details, domain.DeviceDetail{
			Name:  "Lamp",
			Power: power,
			State: state,
			Type:  string(CategoryLight),
		})
	}

	for _, d := range devices {
		power := 0.0
		state := "OFF"
		switch {
		case d.Kind.AlwaysOn:
			state = "IDLE"
			if dutyRunning {
				power = d.Kind.Wattage
				state = "RUNNING"
			}
		case d.Kind.Category == CategoryFurniture:
			// Listed for inventory only; the switch is cosmetic.
			if d.On {
				state = "ON"
			}
		default:
			if d.On {
				power = d.Kind.Wattage
				state = "ON"
			}
		}
		total += power
		details = append(details, domain.DeviceDetail{
			Name:  d.Kind.Label,
			Power: power,
			State: state,
			Type:  string(d.Kind.Category),
		})
	}

	return total, details
}
