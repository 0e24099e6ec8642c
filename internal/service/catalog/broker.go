package catalog

import "strings"

const otcSuffix = " OTC"

var brokerNames = map[string]string{
	"BTC/USD": "BITCOIN", "ETH/USD": "ETHEREUM", "LTC/USD": "LITECOIN",
	"XRP/USD": "XRP", "ADA/USD": "CARDANO", "BNB/USD": "BINANCE COIN",
	"SOL/USD": "SOLANA", "TRX/USD": "TRON", "AVAX/USD": "AVALANCHE",
	"TON/USD": "TONCOIN", "LINK/USD": "CHAINLINK",
	"XAU/USD": "GOLD", "XAG/USD": "SILVER", "OIL/USD": "OIL (WTI)",
	"BRENT": "BRENT OIL", "NG/USD": "NATURAL GAS",
	"S&P500": "US 500", "NASDAQ": "US TECH 100", "DOW": "US 30",
	"FTSE": "UK 100",
	"AAPL": "APPLE", "MSFT": "MICROSOFT", "TSLA": "TESLA",
	"AMZN": "AMAZON", "META": "META", "INTC": "INTEL", "BA": "BOEING",
}

// BrokerName converts a catalog display name to the name shown on the broker's
// asset list. Forex pairs and unknown names pass through; the OTC suffix is kept.
func BrokerName(name string) string {
	base, isOTC := strings.CutSuffix(name, otcSuffix)
	out, ok := brokerNames[base]
	if !ok {
		out = base
	}
	if isOTC {
		out += otcSuffix
	}
	return out
}
