package tuning

// NumZones is the number of addressable tuning zones; zone 0 is global.
const NumZones = 256

// ZoneConfig overrides one zone in the world config.
type ZoneConfig struct {
	Zone         int    `json:"zone"`
	Params       Params `json:"params"`
	EnterMessage string `json:"enterMessage,omitempty"`
	LeaveMessage string `json:"leaveMessage,omitempty"`
}

// Zones is the tuning provider: one table and one pair of messages per zone.
type Zones struct {
	params [NumZones]Params
	enter  [NumZones]string
	leave  [NumZones]string
}

// NewZones starts every zone at global.
func NewZones(global Params, overrides []ZoneConfig) *Zones {
	z := &Zones{}
	for i := range z.params {
		z.params[i] = global
	}
	for _, o := range overrides {
		if o.Zone <= 0 || o.Zone >= NumZones {
			continue
		}
		z.params[o.Zone] = o.Params
		z.enter[o.Zone] = o.EnterMessage
		z.leave[o.Zone] = o.LeaveMessage
	}
	return z
}

func valid(zone int) bool { return zone >= 0 && zone < NumZones }

// Get returns the params in effect inside zone.
func (z *Zones) Get(zone int) Params {
	if z == nil || !valid(zone) {
		return Default()
	}
	return z.params[zone]
}

// Global returns zone 0.
func (z *Zones) Global() Params {
	return z.Get(0)
}

// Set replaces the params of zone.
func (z *Zones) Set(zone int, p Params) {
	if z == nil || !valid(zone) {
		return
	}
	z.params[zone] = p
}

// Messages returns the enter and leave texts of zone.
func (z *Zones) Messages(zone int) (enter, leave string) {
	if z == nil || !valid(zone) {
		return "", ""
	}
	return z.enter[zone], z.leave[zone]
}
