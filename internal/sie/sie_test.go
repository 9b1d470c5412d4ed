package sie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func TestDecodeUTF8WithBOMStripsBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("#FNAMN \"Acme AB\"")...)
	text, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, `#FNAMN "Acme AB"`, text)
}

func TestDecodeUTF8WithoutBOMPassesThrough(t *testing.T) {
	text, err := Decode([]byte("#FNAMN \"Acme AB\""))
	require.NoError(t, err)
	assert.Equal(t, `#FNAMN "Acme AB"`, text)
}

func TestDecodeCP437FallsBackAndNormalizes(t *testing.T) {
	// 0x84 is CP437 for 'ä', not valid standalone UTF-8.
	raw := []byte{'#', 'F', 'N', 'A', 'M', 'N', ' ', 0x84}
	text, err := Decode(raw)
	require.NoError(t, err)
	assert.Contains(t, text, "ä")
}

const sampleSIE = `#FLAGGA 0
#SIETYP 4
#FNAMN "Acme AB"
#ORGNR 5561234567
#VALUTA SEK
#RAR 0 20260101 20261231
#KONTO 1930 "Företagskonto"
#KONTO 3010 "Försäljning"
#IB 0 1930 10000.00
#UB 0 1930 15000.00
#RES 0 3010 -25000.00
#VER A 1 20260115 "Faktura 1"
{
#TRANS 1930 {} 5000.00
#TRANS 3010 {} -5000.00
}
`

func TestParseExtractsMetadataAccountsBalancesAndTransactions(t *testing.T) {
	result, err := Parse(sampleSIE)
	require.NoError(t, err)

	assert.Equal(t, "Acme AB", result.Metadata.CompanyName)
	assert.Equal(t, "5561234567", result.Metadata.OrgNumber)
	assert.Equal(t, "SEK", result.Metadata.Currency)
	assert.Equal(t, domain.SIEType(4), result.Metadata.SIEType)
	assert.Len(t, result.Accounts, 2)
	assert.Len(t, result.Balances, 3)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "1930", result.Transactions[0].AccountNumber)
	assert.Equal(t, 5000.00, result.Transactions[0].Amount)
}

func TestParseDefaultsCurrencyWhenOmitted(t *testing.T) {
	result, err := Parse("#FLAGGA 0\n#SIETYP 4\n")
	require.NoError(t, err)
	assert.Equal(t, "SEK", result.Metadata.Currency)
}

func TestParseHandlesQuotedFieldsWithSpaces(t *testing.T) {
	result, err := Parse(`#KONTO 1930 "Plus Giro Konto"` + "\n")
	require.NoError(t, err)
	require.Len(t, result.Accounts, 1)
	assert.Equal(t, "Plus Giro Konto", result.Accounts[0].AccountName)
}

func TestValidateRequiresClosingAndResultBalances(t *testing.T) {
	result, err := Parse(sampleSIE)
	require.NoError(t, err)
	v := Validate(result)
	assert.True(t, v.Valid())
}

func TestValidateFlagsMissingClosingBalance(t *testing.T) {
	result, err := Parse("#FLAGGA 0\n#SIETYP 4\n#IB 0 1930 1000.00\n")
	require.NoError(t, err)
	v := Validate(result)
	assert.False(t, v.Valid())
	assert.NotEmpty(t, v.Errors)
}

func TestValidateWarnsOnMissingPriorYearBalances(t *testing.T) {
	result, err := Parse(sampleSIE)
	require.NoError(t, err)
	v := Validate(result)
	assert.NotEmpty(t, v.Warnings)
}

func TestWriteRoundTripsParsedStructureBackToText(t *testing.T) {
	result, err := Parse(sampleSIE)
	require.NoError(t, err)

	out, err := Write(result)
	require.NoError(t, err)

	reparsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, result.Metadata.CompanyName, reparsed.Metadata.CompanyName)
	assert.Equal(t, len(result.Transactions), len(reparsed.Transactions))
}
