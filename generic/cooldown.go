package generic

// CooldownGate enforces a minimum number of ticks between automation
// attempts. The zero value is open.
type CooldownGate struct {
	remaining int
}

func (g *CooldownGate) IsOpen() bool { return g.remaining <= 0 }

// Open makes the next tick eligible immediately.
func (g *CooldownGate) Open() { g.remaining = 0 }

func (g *CooldownGate) Close(intervalTicks int) {
	g.remaining = max(intervalTicks, 0)
}

// Tick is called by the host once per world tick whether or not the
// upgrade fires.
func (g *CooldownGate) Tick() {
	if g.remaining > 0 {
		g.remaining--
	}
}

func (g *CooldownGate) Remaining() int { return g.remaining }
