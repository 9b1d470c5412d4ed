package domain

import "time"

// SIEType is the SIE file generation (1-4); type 4 carries full
// verification/transaction detail.
type SIEType int

// SIEMetadata is the header block of a decoded SIE file.
type SIEMetadata struct {
	CompanyName      string     `json:"companyName"`
	Currency         string     `json:"currency"`
	SIEType          SIEType    `json:"sieType"`
	FiscalYearStart  time.Time  `json:"fiscalYearStart"`
	FiscalYearEnd    time.Time  `json:"fiscalYearEnd"`
	OmfattnDate      *time.Time `json:"omfattnDate,omitempty"`
	OrgNumber        string     `json:"orgNumber,omitempty"`
}

// SIEAccount is one row of the chart of accounts as declared in the file.
type SIEAccount struct {
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	AccountGroup  string `json:"accountGroup"`
}

// SIEDimension is a free dimension declaration (#DIM / #OBJEKT rows).
type SIEDimension struct {
	DimensionNumber string `json:"dimensionNumber"`
	DimensionName   string `json:"dimensionName"`
	ObjectNumber    string `json:"objectNumber,omitempty"`
	ObjectName      string `json:"objectName,omitempty"`
}

// SIETransaction is one flattened account row of a posted verification:
// series + number + date + text, one row per account entry (not one row per
// verification).
type SIETransaction struct {
	Series        string    `json:"series"`
	Number        string    `json:"number"`
	Date          time.Time `json:"date"`
	Text          string    `json:"text,omitempty"`
	AccountNumber string    `json:"accountNumber"`
	Amount        float64   `json:"amount"`
}

// BalanceKind distinguishes opening (IB), closing (UB) and income-statement
// (RES) balance rows.
type BalanceKind string

const (
	BalanceOpening BalanceKind = "IB"
	BalanceClosing BalanceKind = "UB"
	BalanceResult  BalanceKind = "RES"
)

// SIEBalance is one balance row, tagged by fiscal-year index: 0 is the
// current year, -1 is the prior year.
type SIEBalance struct {
	Kind          BalanceKind `json:"kind"`
	YearIndex     int         `json:"yearIndex"`
	AccountNumber string      `json:"accountNumber"`
	Amount        float64     `json:"amount"`
}

// SIEParseResult is the fully-parsed structure produced by the SIE codec's
// decode+parse stages.
type SIEParseResult struct {
	Metadata     SIEMetadata      `json:"metadata"`
	Accounts     []SIEAccount     `json:"accounts"`
	Dimensions   []SIEDimension   `json:"dimensions"`
	Transactions []SIETransaction `json:"transactions"`
	Balances     []SIEBalance     `json:"balances"`
	RawContent   string           `json:"-"`
}

// KPIVector is the full set of KPIs computed by the SIE KPI engine. Nil
// pointers mean the KPI is null for this file (undefined denominator, or no
// prior-year data for growth metrics), per spec.md §4.11.
type KPIVector struct {
	AnnualizationFactor float64 `json:"annualizationFactor"`

	NetSales     float64 `json:"netSales"`
	GrossProfit  float64 `json:"grossProfit"`
	EBITDA       float64 `json:"ebitda"`
	EBIT         float64 `json:"ebit"`
	NetIncome    float64 `json:"netIncome"`

	AdjustedEquity        float64 `json:"adjustedEquity"`
	DeferredTaxLiability  float64 `json:"deferredTaxLiability"`

	GrossMargin   *float64 `json:"grossMargin"`
	EBITDAMargin  *float64 `json:"ebitdaMargin"`
	OperatingMargin *float64 `json:"operatingMargin"`
	ProfitMargin  *float64 `json:"profitMargin"`
	NetMargin     *float64 `json:"netMargin"`

	ROA  *float64 `json:"roa"`
	ROE  *float64 `json:"roe"`
	ROCE *float64 `json:"roce"`

	EquityRatio       *float64 `json:"equityRatio"`
	DebtToEquity      *float64 `json:"debtToEquity"`
	InterestCoverage  *float64 `json:"interestCoverage"`

	CashRatio           *float64 `json:"cashRatio"`
	QuickRatio          *float64 `json:"quickRatio"`
	CurrentRatio        *float64 `json:"currentRatio"`
	WorkingCapital      float64  `json:"workingCapital"`
	WorkingCapitalRatio *float64 `json:"workingCapitalRatio"`

	DIO           *float64 `json:"dio"`
	DSO           *float64 `json:"dso"`
	DPO           *float64 `json:"dpo"`
	CCC           *float64 `json:"ccc"`
	AssetTurnover *float64 `json:"assetTurnover"`

	RevenueGrowth       *float64 `json:"revenueGrowth"`
	AssetsGrowth        *float64 `json:"assetsGrowth"`
	AdjustedEquityGrowth *float64 `json:"adjustedEquityGrowth"`
}

// SIEValidation is the structured result of validateSIEBalances.
type SIEValidation struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Valid reports whether the SIE file has no structural errors (warnings are
// permitted; they merely disable dependent KPIs).
func (v SIEValidation) Valid() bool {
	return len(v.Errors) == 0
}

// SIEUpload is one uploaded or fetched SIE file, scoped by
// (connectionId, fiscalYear, sieType).
type SIEUpload struct {
	ConnectionID string    `db:"connection_id" json:"connectionId"`
	FiscalYear   int       `db:"fiscal_year" json:"fiscalYear"`
	SIEType      SIEType   `db:"sie_type" json:"sieType"`
	Filename     string    `db:"filename" json:"filename"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploadedAt"`
}

// SIEData is the full stored payload for one SIE upload: the parsed
// structure, the computed KPIs and the original raw text (kept to support
// re-export).
type SIEData struct {
	ConnectionID string          `db:"connection_id" json:"connectionId"`
	FiscalYear   int             `db:"fiscal_year" json:"fiscalYear"`
	SIEType      SIEType         `db:"sie_type" json:"sieType"`
	Parsed       *SIEParseResult `db:"-" json:"parsed"`
	KPIs         *KPIVector      `db:"-" json:"kpis"`
	Validation   SIEValidation   `db:"-" json:"validation"`
	RawText      string          `db:"raw_text" json:"-"`
	StoredAt     time.Time       `db:"stored_at" json:"storedAt"`
}
