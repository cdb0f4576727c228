// models/tier.go
package models

// Agent tier names, lowest to highest.
const (
	TierRookie   = "rookie"
	TierBronze   = "bronze"
	TierIron     = "iron"
	TierSteel    = "steel"
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
	TierDiamond  = "diamond"
)

// TierSpec describes one reward tier and its challenge parameters.
type TierSpec struct {
	Name                string `json:"name"`
	DisplayName         string `json:"displayName"`
	ReferralRequirement int    `json:"referralRequirement"`
	WindowDays          int    `json:"windowDays"`
	MaxAttempts         int    `json:"maxAttempts"`
	CommissionRate      int    `json:"commissionRate"`
}

// TierOrder is the progression sequence used for advancement and demotion.
var TierOrder = []string{
	TierRookie, TierBronze, TierIron, TierSteel,
	TierSilver, TierGold, TierPlatinum, TierDiamond,
}

// Tiers holds the full tier table keyed by name.
var Tiers = map[string]TierSpec{
	TierRookie:   {Name: TierRookie, DisplayName: "Rookie Agent", ReferralRequirement: 50, WindowDays: 7, MaxAttempts: 2, CommissionRate: 5},
	TierBronze:   {Name: TierBronze, DisplayName: "Bronze Agent", ReferralRequirement: 100, WindowDays: 7, MaxAttempts: 3, CommissionRate: 7},
	TierIron:     {Name: TierIron, DisplayName: "Iron Agent", ReferralRequirement: 200, WindowDays: 7, MaxAttempts: 3, CommissionRate: 10},
	TierSteel:    {Name: TierSteel, DisplayName: "Steel Agent", ReferralRequirement: 400, WindowDays: 7, MaxAttempts: 3, CommissionRate: 15},
	TierSilver:   {Name: TierSilver, DisplayName: "Silver Agent", ReferralRequirement: 1000, WindowDays: 30, MaxAttempts: 4, CommissionRate: 20},
	TierGold:     {Name: TierGold, DisplayName: "Gold Agent", ReferralRequirement: 5000, WindowDays: 90, MaxAttempts: 4, CommissionRate: 25},
	TierPlatinum: {Name: TierPlatinum, DisplayName: "Platinum Agent", ReferralRequirement: 10000, WindowDays: 150, MaxAttempts: 4, CommissionRate: 30},
	TierDiamond:  {Name: TierDiamond, DisplayName: "Diamond Agent", ReferralRequirement: 25000, WindowDays: 300, MaxAttempts: 4, CommissionRate: 35},
}

// NextTier returns the tier above name, or "" when name is the top tier.
func NextTier(name string) string {
	for i, t := range TierOrder {
		if t == name && i+1 < len(TierOrder) {
			return TierOrder[i+1]
		}
	}
	return ""
}

// PreviousTier returns the tier below name. Demotion never goes below the
// lowest tier.
func PreviousTier(name string) string {
	for i, t := range TierOrder {
		if t == name {
			if i == 0 {
				return TierOrder[0]
			}
			return TierOrder[i-1]
		}
	}
	return TierOrder[0]
}
