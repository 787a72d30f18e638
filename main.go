// Command taxengine demonstrates wiring the IBKR German tax declaration
// engine end to end: load config, build the FX provider decorator chain,
// read a JSON fixture of input rows, resolve assets, construct and run the
// pipeline, then persist the result to the SQLite audit store and log a
// summary line. A real broker-export ingestion path (CSV/Flex-XML parsing)
// is explicitly out of scope (spec §1) — this only proves the wiring.
package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/shopspring/decimal"

	"github.com/uebber/ibkr-german-tax-declaration-engine/src/asset"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/config"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/event"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/fx"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/logger"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/pipeline"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/report"
	"github.com/uebber/ibkr-german-tax-declaration-engine/src/testutil"
)

// fixture is the demonstration JSON input shape: one file holding every row
// group the engine's component design (spec §4.1/§6) consumes.
type fixture struct {
	Trades           []event.TradeRow           `json:"trades"`
	CashTransactions []event.CashTransactionRow `json:"cash_transactions"`
	Positions        []event.PositionRow        `json:"positions"`
	CorporateActions []event.CorporateActionRow `json:"corporate_actions"`
	FXRates          []fxRateRow                `json:"fx_rates"`
}

type fxRateRow struct {
	Date     string `json:"date"`
	Currency string `json:"currency"`
	Rate     string `json:"rate"` // foreign units per 1 EUR
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("taxengine: config: %v", err)
	}
	logger.Init(cfg.LogLevel)

	rates := testutil.NewMemoryFxRateProvider(cfg.MaxFXFallbackDays)
	fxProvider := buildFxProvider(rates)

	logger.L.Info("taxengine: loading fixture", "path", cfg.FixturePath)
	fxt, err := loadFixture(cfg.FixturePath, rates)
	if err != nil {
		logger.L.Error("taxengine: loading fixture failed", "error", err)
		os.Exit(1)
	}

	resolver := asset.New()
	ids := event.NewIDGenerator()
	var events []*event.Event

	for _, row := range fxt.Trades {
		a := resolveTradeAsset(resolver, row)
		if asset.IsFXPairSymbol(row.Symbol, row.IBKRAssetClass) {
			from, to := fxPairCurrencies(row.Symbol)
			ev, err := event.ConstructCurrencyConversionEvent(row, a.Id, from, to, ids)
			if err != nil {
				logger.L.Error("taxengine: constructing currency conversion event", "error", err)
				os.Exit(1)
			}
			events = append(events, ev)
			continue
		}
		ev, err := event.ConstructTradeEvent(row, a.Id, ids)
		if err != nil {
			logger.L.Error("taxengine: constructing trade event", "error", err)
			os.Exit(1)
		}
		events = append(events, ev)
	}

	for _, row := range fxt.CashTransactions {
		a := resolver.ResolveOrCreate(row.AssetAliases, asset.Hints{Description: row.Description, Currency: row.Currency, Source: asset.SourceCashTx})
		ev, err := event.ConstructCashEvent(row, a.Id, ids)
		if err != nil {
			logger.L.Error("taxengine: constructing cash event", "error", err)
			os.Exit(1)
		}
		events = append(events, ev)
	}

	for _, row := range fxt.CorporateActions {
		a := resolver.ResolveOrCreate(row.AssetAliases, asset.Hints{Description: row.Description, Currency: row.Currency, Source: asset.SourceCorpAction})
		ev, err := event.ConstructCorpActionEvent(row, a.Id, ids)
		if err != nil {
			logger.L.Error("taxengine: constructing corporate action event", "error", err)
			os.Exit(1)
		}
		events = append(events, ev)
	}

	for _, row := range fxt.Positions {
		a := resolver.ResolveOrCreate(row.AssetAliases, asset.Hints{Currency: row.Currency, Source: asset.SourcePosition})
		applyPosition(a, row)
	}

	assets := make(map[int64]*asset.Asset)
	for _, a := range resolver.Assets() {
		assets[a.Id] = a
	}

	out, err := pipeline.Run(pipeline.Input{
		Events:     events,
		Assets:     assets,
		Config: pipeline.Config{
			TaxYear:                              cfg.TaxYear,
			EOYQuantityTolerance:                 cfg.EOYQuantityTolerance,
			ApplyConceptualDerivativeLossCapping: cfg.ApplyConceptualDerivativeLossCapping,
		},
		FxProvider: fxProvider,
	})
	if err != nil {
		logger.L.Error("taxengine: pipeline run aborted", "error", err)
		os.Exit(1)
	}
	for _, c := range resolver.Conflicts {
		out.Warnings = append(out.Warnings, pipeline.Warning{
			Kind:    pipeline.WarnDescriptionSourceConflict,
			AssetID: c.AssetID,
			Detail:  "overwrote description " + c.Existing + " with " + c.New,
		})
	}

	store, err := report.Open(cfg.AuditDatabasePath)
	if err != nil {
		logger.L.Error("taxengine: opening audit store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	runID, err := store.Persist(cfg.TaxYear, out)
	if err != nil {
		logger.L.Error("taxengine: persisting run", "error", err)
		os.Exit(1)
	}

	logger.L.Info(report.SummaryLine(runID, out))
}

// buildFxProvider wires the caching and rate-limiting decorators around the
// in-memory deterministic provider the entrypoint demonstrates with (spec
// §13): a real ECB-backed provider is the host's concern, out of scope here.
func buildFxProvider(rates *testutil.MemoryFxRateProvider) fx.Provider {
	cached := fx.NewCachingProvider(rates)
	return fx.NewRateLimitedProvider(cached, 50)
}

func loadFixture(path string, rates *testutil.MemoryFxRateProvider) (*fixture, error) {
	var fxt fixture
	if path == "" {
		fxt = demoFixture()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &fxt); err != nil {
			return nil, err
		}
	}
	for _, r := range fxt.FXRates {
		day, err := event.ParseEventDate(r.Date)
		if err != nil {
			return nil, err
		}
		rate, err := decimal.NewFromString(r.Rate)
		if err != nil {
			return nil, err
		}
		rates.Set(day, r.Currency, rate)
	}
	return &fxt, nil
}

// resolveTradeAsset builds the alias set a trade row carries (spec §4.1) and
// folds in option-contract details when the row is an OPT leg.
func resolveTradeAsset(r *asset.Resolver, row event.TradeRow) *asset.Asset {
	var aliases []string
	if row.Conid != "" {
		aliases = append(aliases, "CONID:"+row.Conid)
	}
	if row.ISIN != "" {
		aliases = append(aliases, "ISIN:"+row.ISIN)
	}
	if row.Symbol != "" {
		aliases = append(aliases, "SYMBOL:"+row.Symbol)
	}

	cat := categoryFromAssetClass(row.IBKRAssetClass)
	if asset.IsFXPairSymbol(row.Symbol, row.IBKRAssetClass) {
		cat = asset.CategoryUnknown
	}
	a := r.ResolveOrCreate(aliases, asset.Hints{Description: row.Description, Currency: row.Currency, Category: cat, Source: asset.SourceTrade})

	if cat == asset.CategoryOption && a.Option == nil {
		a.Option = &asset.OptionDetails{
			Strike:          row.Strike,
			Expiry:          row.Expiry,
			IsPut:           row.PutCall == "P",
			Multiplier:      row.Multiplier,
			UnderlyingConid: row.UnderlyingConid,
		}
	}
	return a
}

func categoryFromAssetClass(ibkrClass string) asset.Category {
	switch ibkrClass {
	case "STK":
		return asset.CategoryStock
	case "OPT":
		return asset.CategoryOption
	case "BOND":
		return asset.CategoryBond
	case "FUND":
		return asset.CategoryInvestmentFund
	case "CFD":
		return asset.CategoryCFD
	case "CASH":
		return asset.CategoryCashBalance
	default:
		return asset.CategoryUnknown
	}
}

func fxPairCurrencies(symbol string) (from, to string) {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '.' {
			return symbol[:i], symbol[i+1:]
		}
	}
	return "", ""
}

func applyPosition(a *asset.Asset, row event.PositionRow) {
	if row.IsStartOfYear {
		a.SOY.Present = true
		a.SOY.Quantity = row.Quantity
		a.SOY.CostBasisAmount = row.CostBasisAmount
		a.SOY.CostBasisKnown = row.CostBasisKnown
		a.SOY.CostBasisCcy = row.CostBasisCurrency
		return
	}
	a.EOY.Present = true
	a.EOY.Quantity = row.Quantity
	a.EOY.MarketPrice = row.MarketPrice
}

// demoFixture is the self-contained dataset the entrypoint runs when
// FIXTURE_PATH is unset, reproducing Scenario A from spec §8: a two-lot
// stock purchase sold in a single multi-lot FIFO sale.
func demoFixture() fixture {
	return fixture{
		Trades: []event.TradeRow{
			{
				Currency: "EUR", IBKRAssetClass: "STK", Symbol: "DEMO", Conid: "1001",
				Description: "Demo AG", Quantity: decimal.RequireFromString("10"),
				TradePrice: decimal.RequireFromString("10.10"), BuySell: "BUY", OpenClose: "O",
				TradeDate: "2023-03-01", BrokerTransactionID: "T1",
			},
			{
				Currency: "EUR", IBKRAssetClass: "STK", Symbol: "DEMO", Conid: "1001",
				Description: "Demo AG", Quantity: decimal.RequireFromString("10"),
				TradePrice: decimal.RequireFromString("11.10"), BuySell: "BUY", OpenClose: "O",
				TradeDate: "2023-04-01", BrokerTransactionID: "T2",
			},
			{
				Currency: "EUR", IBKRAssetClass: "STK", Symbol: "DEMO", Conid: "1001",
				Description: "Demo AG", Quantity: decimal.RequireFromString("15"),
				TradePrice: decimal.RequireFromString("119.9333"), BuySell: "SELL", OpenClose: "C",
				TradeDate: "2023-06-01", BrokerTransactionID: "T3",
			},
		},
		Positions: []event.PositionRow{
			{Date: "2023-12-31", AssetAliases: []string{"CONID:1001"}, Quantity: decimal.RequireFromString("5"), Currency: "EUR", IsStartOfYear: false},
		},
	}
}
