package catalog

import "SignalBot/internal/domain/models"

func otc(name, symbol string, payout int) models.Instrument {
	return models.Instrument{Name: name, Symbol: symbol, Class: models.InstrumentOTC, Payout: payout}
}

func regular(name, symbol string, payout int) models.Instrument {
	return models.Instrument{Name: name, Symbol: symbol, Class: models.InstrumentRegular, Payout: payout}
}

// DefaultGroups is the built-in broker listing used when configuration omits
// the catalog section.
func DefaultGroups() []Group {
	return []Group{
		{Name: "crypto_otc", Instruments: []models.Instrument{
			otc("BTC/USD OTC", "BTC-USD", 92),
			otc("ETH/USD OTC", "ETH-USD", 92),
			otc("ADA/USD OTC", "ADA-USD", 92),
			otc("LINK/USD OTC", "LINK-USD", 92),
			otc("SOL/USD OTC", "SOL-USD", 92),
			otc("TRX/USD OTC", "TRX-USD", 92),
			otc("AVAX/USD OTC", "AVAX-USD", 92),
			otc("LTC/USD OTC", "LTC-USD", 92),
			otc("BNB/USD OTC", "BNB-USD", 92),
			otc("TON/USD OTC", "TON11419-USD", 92),
		}},
		{Name: "crypto", Instruments: []models.Instrument{
			regular("BTC/USD", "BTC-USD", 85),
			regular("ETH/USD", "ETH-USD", 85),
			regular("LTC/USD", "LTC-USD", 85),
			regular("XRP/USD", "XRP-USD", 85),
			regular("ADA/USD", "ADA-USD", 85),
			regular("BNB/USD", "BNB-USD", 85),
		}},
		{Name: "forex_otc", Instruments: []models.Instrument{
			otc("EUR/USD OTC", "EURUSD=X", 92),
			otc("GBP/USD OTC", "GBPUSD=X", 92),
			otc("USD/JPY OTC", "JPY=X", 92),
			otc("AUD/USD OTC", "AUDUSD=X", 92),
		}},
		{Name: "forex", Instruments: []models.Instrument{
			regular("EUR/USD", "EURUSD=X", 85),
			regular("GBP/USD", "GBPUSD=X", 85),
			regular("USD/JPY", "JPY=X", 85),
			regular("AUD/USD", "AUDUSD=X", 85),
			regular("USD/CHF", "CHF=X", 85),
			regular("EUR/GBP", "EURGBP=X", 85),
			regular("USD/CAD", "CAD=X", 85),
			regular("NZD/USD", "NZDUSD=X", 85),
			regular("EUR/JPY", "EURJPY=X", 85),
			regular("GBP/JPY", "GBPJPY=X", 85),
		}},
		{Name: "stocks_otc", Instruments: []models.Instrument{
			otc("AAPL OTC", "AAPL", 92),
			otc("INTC OTC", "INTC", 92),
		}},
		{Name: "stocks", Instruments: []models.Instrument{
			regular("AAPL", "AAPL", 85),
			regular("MSFT", "MSFT", 85),
			regular("AMZN", "AMZN", 85),
			regular("TSLA", "TSLA", 85),
			regular("META", "META", 85),
			regular("INTC", "INTC", 85),
			regular("BA", "BA", 85),
		}},
		{Name: "commodities_otc", Instruments: []models.Instrument{
			otc("GOLD OTC", "GC=F", 80),
			otc("AUS200 OTC", "^AXJO", 67),
		}},
		{Name: "commodities", Instruments: []models.Instrument{
			regular("XAU/USD", "GC=F", 85),
			regular("XAG/USD", "SI=F", 85),
			regular("OIL/USD", "CL=F", 85),
			regular("BRENT", "BZ=F", 85),
			regular("NG/USD", "NG=F", 85),
			regular("S&P500", "^GSPC", 85),
			regular("NASDAQ", "^IXIC", 85),
			regular("DOW", "^DJI", 85),
			regular("FTSE", "^FTSE", 85),
		}},
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultGroups())
	if err != nil {
		panic(err)
	}
	return c
}
