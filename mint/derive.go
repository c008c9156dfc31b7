package mint

import (
	"fmt"
	"math/big"
	"strings"

	"mint-dashboard/models"
)

// CountdownReady is rendered instead of a countdown once a mint has matured.
const CountdownReady = "ready"

// TimeRemaining returns max(0, maturityTs-now) in seconds.
func TimeRemaining(now, maturityTs int64) int64 {
	if maturityTs <= now {
		return 0
	}
	return maturityTs - now
}

// FormatCountdown renders seconds as zero-padded HH:MM:SS. Hours are not wrapped.
func FormatCountdown(remaining int64) string {
	if remaining <= 0 {
		return CountdownReady
	}
	h := remaining / 3600
	m := (remaining % 3600) / 60
	s := remaining % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// RewardEstimate returns globalRank - mint.Rank, or nil without an active mint.
// A stale rank read can make it negative; it is not clamped.
func RewardEstimate(globalRank *big.Int, mint *models.MintRecord) *big.Int {
	if globalRank == nil || !mint.Active() {
		return nil
	}
	return new(big.Int).Sub(globalRank, mint.Rank)
}

// FormatUnits renders a base-unit amount with the given number of decimals,
// trimming trailing zeros: 1500000000000000000 with 18 decimals is "1.5".
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return ""
	}
	if decimals <= 0 {
		return amount.String()
	}

	abs := new(big.Int).Abs(amount)
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, unit, new(big.Int))

	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%0*s", decimals, frac.String()), "0")
	return sign + whole.String() + "." + fracStr
}
