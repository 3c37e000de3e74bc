package marketdata

import (
	"regexp"
	"strings"

	"mcp/src/models"
)

// -----------------------------------------------------------------------------
// Asset-class inference from the raw symbol. Heuristics, in check order:
// crypto affixes, forex pairs, CME-style futures codes, default stocks.
// -----------------------------------------------------------------------------

var (
	forexPairPattern = regexp.MustCompile(`^[A-Z]{6}$`)
	forexSlashPair   = regexp.MustCompile(`^[A-Z]{3}/[A-Z]{3}$`)

	// CME month codes: F G H J K M N Q U V X Z
	futuresPattern = regexp.MustCompile(`^[A-Z]{1,3}[FGHJKMNQUVXZ]\d{1,2}$`)

	cryptoAffixes = []string{"USDT", "BTC", "ETH"}
)

// -----------------------------------------------------------------------------

// InferAssetClass guesses the asset class of a symbol.
func InferAssetClass(symbol string) models.AssetClass {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	for _, affix := range cryptoAffixes {
		if s == affix {
			continue
		}
		if strings.HasSuffix(s, affix) || strings.HasPrefix(s, affix) {
			return models.AssetCrypto
		}
	}

	if forexSlashPair.MatchString(s) || forexPairPattern.MatchString(s) {
		return models.AssetForex
	}

	if futuresPattern.MatchString(s) {
		return models.AssetFutures
	}

	return models.AssetStocks
}
