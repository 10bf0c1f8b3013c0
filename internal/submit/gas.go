package submit

// Strategy picks how aggressively submissions bid against the market gas
// price. The tier multiplier stacks with the per-network GasMultiplier.
type Strategy string

const (
	Fastest  Strategy = "FASTEST"
	Fast     Strategy = "FAST"
	Average  Strategy = "AVERAGE"
	Economic Strategy = "ECONOMIC"
)

func (s Strategy) Multiplier() float64 {
	switch s {
	case Fastest:
		return 1.5
	case Fast:
		return 1.2
	case Economic:
		return 0.8
	default:
		return 1.0
	}
}

// bufferGas applies the fixed +20% estimation safety buffer.
func bufferGas(estimate uint64) uint64 {
	return estimate + estimate/5
}

// price combines market price, the network multiplier and the strategy tier.
func price(market uint64, networkMultiplier float64, s Strategy) uint64 {
	if networkMultiplier <= 0 {
		networkMultiplier = 1.0
	}
	p := float64(market) * networkMultiplier * s.Multiplier()
	if p < 1 {
		p = 1
	}
	return uint64(p)
}
