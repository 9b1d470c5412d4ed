// Package kpi computes the fixed KPI vector spec.md §4.11 requires from a
// parsed SIE file's balances. Every formula here is intentionally literal
// rather than "clean": the source rules are exact and must be reproduced,
// not rephrased.
package kpi

import (
	"math"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

const corporateTaxRate = 0.206
const untaxedReservesFactor = 1 - corporateTaxRate // 0.794

// BAS account ranges used for categorization. Sub-ranges follow the
// standard Baskontoplan layout; the spec names the categories and leaves
// exact boundaries to the implementer (DESIGN.md records this choice).
const (
	assetsFixedStart, assetsFixedEnd           = 1000, 1299
	inventoryStart, inventoryEnd               = 1400, 1489
	receivablesStart, receivablesEnd           = 1500, 1599
	cashStart, cashEnd                         = 1900, 1999
	assetsCurrentStart, assetsCurrentEnd       = 1300, 1999

	equityStart, equityEnd                     = 2080, 2099
	untaxedReservesStart, untaxedReservesEnd   = 2100, 2199
	provisionsStart, provisionsEnd             = 2200, 2299

	longTermLiabStart, longTermLiabEnd         = 2300, 2399
	longTermInterestBearingStart, longTermInterestBearingEnd = 2300, 2350

	currentLiabStart, currentLiabEnd           = 2400, 2999
	currentLiabInterestBearingStart, currentLiabInterestBearingEnd = 2400, 2450
	accountsPayableStart, accountsPayableEnd   = 2440, 2449

	revenueStart, revenueEnd   = 3000, 3799
	discountsStart, discountsEnd = 3700, 3799
	cogsStart, cogsEnd         = 4000, 4999
	opexStart, opexEnd         = 5000, 6999
	personnelStart, personnelEnd = 7000, 7699
	depreciationStart, depreciationEnd = 7700, 7899

	financialStart, financialEnd           = 8000, 8899
	financialIncomeStart, financialIncomeEnd = 8000, 8099
	otherFinancialExpenseStart, otherFinancialExpenseEnd = 8100, 8399
	interestExpenseStart, interestExpenseEnd = 8400, 8499
	taxesStart, taxesEnd                     = 8500, 8899

	// ytdResultEnd is 8999, not financialEnd's 8899: spec.md §4.11 defines the
	// "financial items" category as 8000-8899 but YTD result as the negated
	// sum of current-year RES rows over the wider 3000-8999.
	ytdResultEnd = 8999
)

func inRange(number string, lo, hi int) bool {
	n := accountNumberAsInt(number)
	return n >= lo && n <= hi
}

func accountNumberAsInt(number string) int {
	n := 0
	for _, r := range number {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// sumBalance sums UB (balance-sheet) or RES (income-statement) rows in
// [lo, hi] for the given year index.
func sumBalance(balances []domain.SIEBalance, kind domain.BalanceKind, yearIndex, lo, hi int) (float64, bool) {
	var total float64
	found := false
	for _, b := range balances {
		if b.Kind == kind && b.YearIndex == yearIndex && inRange(b.AccountNumber, lo, hi) {
			total += b.Amount
			found = true
		}
	}
	return total, found
}

func avg(ib, ub float64, hasIB, hasUB bool) float64 {
	switch {
	case hasIB && hasUB:
		return (ib + ub) / 2
	case hasUB:
		return ub
	case hasIB:
		return ib
	default:
		return 0
	}
}

// annualizationFactor implements spec.md §4.11: partial-period files
// (days outside [350, 380]) are scaled to 365/days; full-year files use 1.0.
func annualizationFactor(m domain.SIEMetadata) float64 {
	if m.OmfattnDate == nil {
		return 1.0
	}
	days := int(m.OmfattnDate.Sub(m.FiscalYearStart).Hours()/24) + 1
	if days <= 0 {
		return 1.0
	}
	if days < 350 || days > 380 {
		return 365.0 / float64(days)
	}
	return 1.0
}

func ratio(numerator, denominator float64) *float64 {
	if denominator == 0 {
		return nil
	}
	v := numerator / denominator
	return &v
}

func ratioPositiveDenom(numerator, denominator float64) *float64 {
	if denominator <= 0 {
		return nil
	}
	v := numerator / denominator
	return &v
}

func percent(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p * 100
	return &v
}

// Compute builds the full KPI vector for one parsed SIE file, following
// spec.md §4.11 exactly: the annualization factor scales flow KPIs but not
// margins (dimensionless) or balance-sheet stock items.
func Compute(p *domain.SIEParseResult) *domain.KPIVector {
	bal := p.Balances
	factor := annualizationFactor(p.Metadata)

	// Balance-sheet stocks (current year, UB).
	fixedAssets, _ := sumBalance(bal, domain.BalanceClosing, 0, assetsFixedStart, assetsFixedEnd)
	currentAssets, _ := sumBalance(bal, domain.BalanceClosing, 0, assetsCurrentStart, assetsCurrentEnd)
	inventory, _ := sumBalance(bal, domain.BalanceClosing, 0, inventoryStart, inventoryEnd)
	receivables, _ := sumBalance(bal, domain.BalanceClosing, 0, receivablesStart, receivablesEnd)
	cash, _ := sumBalance(bal, domain.BalanceClosing, 0, cashStart, cashEnd)
	totalAssetsCur := fixedAssets + currentAssets

	equity, _ := sumBalance(bal, domain.BalanceClosing, 0, equityStart, equityEnd)
	untaxedReserves, _ := sumBalance(bal, domain.BalanceClosing, 0, untaxedReservesStart, untaxedReservesEnd)
	provisions, _ := sumBalance(bal, domain.BalanceClosing, 0, provisionsStart, provisionsEnd)
	longTermLiab, _ := sumBalance(bal, domain.BalanceClosing, 0, longTermLiabStart, longTermLiabEnd)
	longTermInterestBearing, _ := sumBalance(bal, domain.BalanceClosing, 0, longTermInterestBearingStart, longTermInterestBearingEnd)
	currentLiab, _ := sumBalance(bal, domain.BalanceClosing, 0, currentLiabStart, currentLiabEnd)
	currentInterestBearing, _ := sumBalance(bal, domain.BalanceClosing, 0, currentLiabInterestBearingStart, currentLiabInterestBearingEnd)
	accountsPayable, _ := sumBalance(bal, domain.BalanceClosing, 0, accountsPayableStart, accountsPayableEnd)

	// Prior-year (yearIndex -1) closing stocks, used for YoY growth metrics.
	fixedAssetsPY, hasFixedPY := sumBalance(bal, domain.BalanceClosing, -1, assetsFixedStart, assetsFixedEnd)
	currentAssetsPY, hasCurPY := sumBalance(bal, domain.BalanceClosing, -1, assetsCurrentStart, assetsCurrentEnd)
	totalAssetsPY := fixedAssetsPY + currentAssetsPY
	hasTotalAssetsPY := hasFixedPY || hasCurPY
	equityPY, hasEquityPY := sumBalance(bal, domain.BalanceClosing, -1, equityStart, equityEnd)
	untaxedReservesPY, hasUntaxedPY := sumBalance(bal, domain.BalanceClosing, -1, untaxedReservesStart, untaxedReservesEnd)
	_ = hasUntaxedPY

	// Current-year (yearIndex 0) opening (IB) stocks: spec.md §4.11's
	// "averages for return ratios" average opening against closing within the
	// same year, not closing-vs-closing across years.
	fixedAssetsIB, hasFixedIB := sumBalance(bal, domain.BalanceOpening, 0, assetsFixedStart, assetsFixedEnd)
	currentAssetsIB, hasCurIB := sumBalance(bal, domain.BalanceOpening, 0, assetsCurrentStart, assetsCurrentEnd)
	totalAssetsIB := fixedAssetsIB + currentAssetsIB
	hasTotalAssetsIB := hasFixedIB || hasCurIB
	equityIB, hasEquityIB := sumBalance(bal, domain.BalanceOpening, 0, equityStart, equityEnd)
	untaxedReservesIB, _ := sumBalance(bal, domain.BalanceOpening, 0, untaxedReservesStart, untaxedReservesEnd)
	longTermIBOpening, hasLongTermIBOpening := sumBalance(bal, domain.BalanceOpening, 0, longTermInterestBearingStart, longTermInterestBearingEnd)
	currentIBOpening, hasCurrentIBOpening := sumBalance(bal, domain.BalanceOpening, 0, currentLiabInterestBearingStart, currentLiabInterestBearingEnd)
	hasInterestBearingIB := hasLongTermIBOpening || hasCurrentIBOpening

	// Provisions and liabilities are credit balances, stored negative in SIE;
	// negate them to get conventional positive amounts.
	provisions, longTermLiab, currentLiab = -provisions, -longTermLiab, -currentLiab
	longTermInterestBearing, currentInterestBearing = -longTermInterestBearing, -currentInterestBearing
	accountsPayable = -accountsPayable
	longTermIBOpening, currentIBOpening = -longTermIBOpening, -currentIBOpening

	// Income-statement flows (current year, RES). SIE stores these signed
	// opposite to natural reading (revenue negative, expense positive);
	// negate to get conventional signs.
	revenueRaw, _ := sumBalance(bal, domain.BalanceResult, 0, revenueStart, revenueEnd)
	cogsRaw, _ := sumBalance(bal, domain.BalanceResult, 0, cogsStart, cogsEnd)
	opexRaw, _ := sumBalance(bal, domain.BalanceResult, 0, opexStart, opexEnd)
	personnelRaw, _ := sumBalance(bal, domain.BalanceResult, 0, personnelStart, personnelEnd)
	depreciationRaw, _ := sumBalance(bal, domain.BalanceResult, 0, depreciationStart, depreciationEnd)
	financialIncomeRaw, _ := sumBalance(bal, domain.BalanceResult, 0, financialIncomeStart, financialIncomeEnd)
	interestExpenseRaw, _ := sumBalance(bal, domain.BalanceResult, 0, interestExpenseStart, interestExpenseEnd)
	otherFinExpenseRaw, _ := sumBalance(bal, domain.BalanceResult, 0, otherFinancialExpenseStart, otherFinancialExpenseEnd)
	taxesRaw, _ := sumBalance(bal, domain.BalanceResult, 0, taxesStart, taxesEnd)

	// Revenue rows are negative; the revenue range already spans the discount
	// rows (3700-3799, debit/positive), so negating the sum nets them out.
	netSales := -revenueRaw
	cogs := cogsRaw
	grossProfit := netSales - cogs
	opex := opexRaw + personnelRaw
	ebitda := grossProfit - opex
	depreciation := depreciationRaw
	ebit := ebitda - depreciation
	financialNet := financialIncomeRaw - interestExpenseRaw - otherFinExpenseRaw
	netIncome := ebit + financialNet - taxesRaw

	// YTD result: negated sum of all current-year RES rows over 3000-8999.
	ytdResultRaw, _ := sumBalance(bal, domain.BalanceResult, 0, revenueStart, ytdResultEnd)
	ytdResult := -ytdResultRaw

	adjustedEquity := math.Abs(equity) + math.Abs(untaxedReserves)*untaxedReservesFactor + ytdResult
	deferredTaxLiability := math.Abs(untaxedReserves) * corporateTaxRate

	adjustedEquityPY := math.Abs(equityPY) + math.Abs(untaxedReservesPY)*untaxedReservesFactor

	// adjustedEquityIB omits the YTD-result term: at the opening of the
	// current year no current-year result has accrued yet.
	adjustedEquityIB := math.Abs(equityIB) + math.Abs(untaxedReservesIB)*untaxedReservesFactor

	avgTotalAssets := avg(totalAssetsIB, totalAssetsCur, hasTotalAssetsIB, true)
	avgAdjustedEquity := avg(adjustedEquityIB, adjustedEquity, hasEquityIB, true)
	avgInterestBearingDebt := avg(longTermIBOpening+currentIBOpening, longTermInterestBearing+currentInterestBearing, hasInterestBearingIB, true)

	annualNetSales := netSales * factor
	annualEBIT := ebit * factor
	annualEBITDA := ebitda * factor
	annualCOGS := cogs * factor
	annualNetIncome := netIncome * factor
	annualInterestExpense := interestExpenseRaw * factor

	v := &domain.KPIVector{
		AnnualizationFactor:  factor,
		NetSales:             annualNetSales,
		GrossProfit:          grossProfit * factor,
		EBITDA:               annualEBITDA,
		EBIT:                 annualEBIT,
		NetIncome:            annualNetIncome,
		AdjustedEquity:       adjustedEquity,
		DeferredTaxLiability: deferredTaxLiability,
		WorkingCapital:       currentAssets - currentLiab,
	}

	v.GrossMargin = percent(ratio(grossProfit, netSales))
	v.EBITDAMargin = percent(ratio(ebitda, netSales))
	v.OperatingMargin = percent(ratio(ebit, netSales))
	v.ProfitMargin = percent(ratio(ebit+financialNet, netSales))
	v.NetMargin = percent(ratio(netIncome, netSales))

	v.ROA = percent(ratioPositiveDenom(annualEBIT, avgTotalAssets))
	v.ROE = percent(ratioPositiveDenom(annualNetIncome, avgAdjustedEquity))
	v.ROCE = percent(ratioPositiveDenom(annualEBIT, avgAdjustedEquity+avgInterestBearingDebt))

	totalLiabilities := provisions + longTermLiab + currentLiab
	v.EquityRatio = percent(ratio(adjustedEquity, totalAssetsCur))
	v.DebtToEquity = ratio(totalLiabilities, adjustedEquity)
	v.InterestCoverage = ratio(annualEBIT, annualInterestExpense)

	v.CashRatio = ratio(cash, currentLiab)
	v.QuickRatio = ratio(currentAssets-inventory, currentLiab)
	v.CurrentRatio = ratio(currentAssets, currentLiab)
	v.WorkingCapitalRatio = ratio(v.WorkingCapital, annualNetSales)

	v.DIO = ratioPositiveDenom(inventory*365, annualCOGS)
	v.DSO = ratioPositiveDenom(receivables*365, annualNetSales)
	v.DPO = ratioPositiveDenom(accountsPayable*365, annualCOGS)
	if v.DIO != nil && v.DSO != nil && v.DPO != nil {
		ccc := *v.DIO + *v.DSO - *v.DPO
		v.CCC = &ccc
	}
	v.AssetTurnover = ratioPositiveDenom(annualNetSales, avgTotalAssets)

	if hasTotalAssetsPY && totalAssetsPY != 0 {
		v.AssetsGrowth = percent(ratio(totalAssetsCur-totalAssetsPY, math.Abs(totalAssetsPY)))
	}
	if hasEquityPY && adjustedEquityPY != 0 {
		v.AdjustedEquityGrowth = percent(ratio(adjustedEquity-adjustedEquityPY, math.Abs(adjustedEquityPY)))
	}
	// Revenue growth needs prior-year RES revenue; absence of any prior-year
	// balance row disables it entirely per spec.md's "missing prior-year
	// disables growth metrics" rule.
	revenuePY, hasRevenuePY := sumBalance(bal, domain.BalanceResult, -1, revenueStart, revenueEnd)
	if hasRevenuePY {
		netSalesPY := -revenuePY
		if netSalesPY != 0 {
			v.RevenueGrowth = percent(ratio(netSales-netSalesPY, math.Abs(netSalesPY)))
		}
	}

	return v
}
