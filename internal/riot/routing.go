package riot

import (
	"fmt"
	"strings"
)

// Queue and map identifiers used by the sync engine.
const (
	QueueNormalDraft = 400
	QueueRankedSolo  = 420
	QueueRankedFlex  = 440

	MapSummonersRift = 11

	QueueTypeSolo = "RANKED_SOLO_5x5"
	QueueTypeFlex = "RANKED_FLEX_SR"
)

// platform -> regional cluster for match-v5
var matchRoutes = map[string]string{
	"na1":  "americas",
	"br1":  "americas",
	"la1":  "americas",
	"la2":  "americas",
	"euw1": "europe",
	"eun1": "europe",
	"tr1":  "europe",
	"ru":   "europe",
	"me1":  "europe",
	"kr":   "asia",
	"jp1":  "asia",
	"oc1":  "sea",
	"sg2":  "sea",
	"tw2":  "sea",
	"vn2":  "sea",
}

// ValidateRegion checks that a platform routing value is known.
func ValidateRegion(region string) error {
	if _, ok := matchRoutes[strings.ToLower(region)]; !ok {
		return fmt.Errorf("unknown region %q", region)
	}
	return nil
}

// MatchRoute returns the regional cluster serving match-v5 for a platform.
func MatchRoute(region string) string {
	if r, ok := matchRoutes[strings.ToLower(region)]; ok {
		return r
	}
	return "americas"
}

// AccountRoute returns the cluster serving account-v1. There is no sea
// cluster for accounts; those platforms use asia.
func AccountRoute(region string) string {
	r := MatchRoute(region)
	if r == "sea" {
		return "asia"
	}
	return r
}
