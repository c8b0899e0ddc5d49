package models

import "fmt"

// Strategy selects the rollback state machine for a service.
type Strategy string

const (
	StrategyBlueGreen   Strategy = "blue-green"
	StrategyCanary      Strategy = "canary"
	StrategyRolling     Strategy = "rolling"
	StrategyFeatureFlag Strategy = "feature-flag"
)

// wireRegular is the legacy name for the rolling strategy on the external
// trigger contract. Alerting integrations still send it.
const wireRegular = "regular"

// ParseStrategy converts canonical or wire-format strategy names.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case string(StrategyBlueGreen):
		return StrategyBlueGreen, nil
	case string(StrategyCanary):
		return StrategyCanary, nil
	case string(StrategyRolling), wireRegular:
		return StrategyRolling, nil
	case string(StrategyFeatureFlag):
		return StrategyFeatureFlag, nil
	}
	return "", fmt.Errorf("unknown deployment strategy %q", s)
}

// Valid reports whether s is one of the four known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyBlueGreen, StrategyCanary, StrategyRolling, StrategyFeatureFlag:
		return true
	}
	return false
}
