package sie

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

// tokenize splits one SIE line into shell-like tokens: whitespace-separated,
// except runs quoted with "..." which are kept intact (SIE quotes any field
// containing spaces).
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func parseSIEDate(s string) time.Time {
	t, _ := time.Parse("20060102", s)
	return t
}

// Parse decodes normalized SIE text into a structured result, per spec.md
// §4.11's three-layer codec. Unknown/unsupported label lines are ignored
// (SIE is line-oriented and forward-compatible by design).
func Parse(text string) (*domain.SIEParseResult, error) {
	result := &domain.SIEParseResult{RawContent: text}
	var currentTransaction *domain.SIETransaction

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "#") {
			continue
		}
		tokens := tokenize(line)
		if len(tokens) == 0 {
			continue
		}
		label := tokens[0]
		args := tokens[1:]

		switch label {
		case "#FNAMN":
			if len(args) >= 1 {
				result.Metadata.CompanyName = args[0]
			}
		case "#ORGNR":
			if len(args) >= 1 {
				result.Metadata.OrgNumber = args[0]
			}
		case "#VALUTA":
			if len(args) >= 1 {
				result.Metadata.Currency = args[0]
			} else {
				result.Metadata.Currency = "SEK"
			}
		case "#SIETYP":
			if len(args) >= 1 {
				n, _ := strconv.Atoi(args[0])
				result.Metadata.SIEType = domain.SIEType(n)
			}
		case "#RAR":
			// #RAR 0 20230101 20231231  (yearIndex start end)
			if len(args) >= 3 && args[0] == "0" {
				result.Metadata.FiscalYearStart = parseSIEDate(args[1])
				result.Metadata.FiscalYearEnd = parseSIEDate(args[2])
			}
		case "#OMFATTN":
			if len(args) >= 1 {
				d := parseSIEDate(args[0])
				result.Metadata.OmfattnDate = &d
			}
		case "#KONTO":
			if len(args) >= 2 {
				number := args[0]
				result.Accounts = append(result.Accounts, domain.SIEAccount{
					AccountNumber: number,
					AccountName:   args[1],
					AccountGroup:  string(number[0:1]),
				})
			}
		case "#DIM":
			if len(args) >= 2 {
				result.Dimensions = append(result.Dimensions, domain.SIEDimension{
					DimensionNumber: args[0],
					DimensionName:   args[1],
				})
			}
		case "#IB", "#UB", "#RES":
			kind := domain.BalanceKind("")
			switch label {
			case "#IB":
				kind = domain.BalanceOpening
			case "#UB":
				kind = domain.BalanceClosing
			case "#RES":
				kind = domain.BalanceResult
			}
			if len(args) >= 3 {
				yearIdx, _ := strconv.Atoi(args[0])
				amount, _ := strconv.ParseFloat(strings.ReplaceAll(args[2], ",", "."), 64)
				result.Balances = append(result.Balances, domain.SIEBalance{
					Kind: kind, YearIndex: yearIdx, AccountNumber: args[1], Amount: amount,
				})
			}
		case "#VER":
			// #VER series number date text
			currentTransaction = &domain.SIETransaction{}
			if len(args) >= 1 {
				currentTransaction.Series = args[0]
			}
			if len(args) >= 2 {
				currentTransaction.Number = args[1]
			}
			if len(args) >= 3 {
				currentTransaction.Date = parseSIEDate(args[2])
			}
			if len(args) >= 4 {
				currentTransaction.Text = args[3]
			}
		case "#TRANS":
			// #TRANS account {objects} amount; the object list may be "{}"
			// or span several tokens.
			if currentTransaction == nil || len(args) < 2 {
				continue
			}
			rest := args[1:]
			if strings.HasPrefix(rest[0], "{") {
				for len(rest) > 0 {
					tok := rest[0]
					rest = rest[1:]
					if strings.HasSuffix(tok, "}") {
						break
					}
				}
			}
			if len(rest) == 0 {
				continue
			}
			amount, _ := strconv.ParseFloat(strings.ReplaceAll(rest[0], ",", "."), 64)
			result.Transactions = append(result.Transactions, domain.SIETransaction{
				Series:        currentTransaction.Series,
				Number:        currentTransaction.Number,
				Date:          currentTransaction.Date,
				Text:          currentTransaction.Text,
				AccountNumber: args[0],
				Amount:        amount,
			})
		}
	}
	if result.Metadata.Currency == "" {
		result.Metadata.Currency = "SEK"
	}
	return result, nil
}

// Validate implements spec.md §4.11's validateSIEBalances pass.
func Validate(p *domain.SIEParseResult) domain.SIEValidation {
	var v domain.SIEValidation
	hasUB, hasIB, hasRES, hasCurrentYear := false, false, false, false
	for _, b := range p.Balances {
		switch b.Kind {
		case domain.BalanceClosing:
			hasUB = true
			if b.YearIndex == 0 {
				hasCurrentYear = true
			}
		case domain.BalanceOpening:
			hasIB = true
		case domain.BalanceResult:
			hasRES = true
			if b.YearIndex == 0 {
				hasCurrentYear = true
			}
		}
	}
	if !hasUB {
		v.Errors = append(v.Errors, "no UB (closing balance) rows present")
	}
	if !hasRES {
		v.Errors = append(v.Errors, "no RES (income statement) rows present")
	}
	if !hasCurrentYear {
		v.Errors = append(v.Errors, "no current-year (yearIndex 0) balance rows present")
	}
	if !hasIB {
		v.Warnings = append(v.Warnings, "no IB (opening balance) rows present")
	}
	hasPriorYear := false
	for _, b := range p.Balances {
		if b.YearIndex == -1 {
			hasPriorYear = true
			break
		}
	}
	if !hasPriorYear {
		v.Warnings = append(v.Warnings, "no prior-year balance rows present; growth metrics will be null")
	}
	return v
}

// Write round-trips a parse result back to SIE text.
func Write(p *domain.SIEParseResult) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "#FLAGGA 0\n")
	fmt.Fprintf(&b, "#SIETYP %d\n", p.Metadata.SIEType)
	if p.Metadata.CompanyName != "" {
		fmt.Fprintf(&b, "#FNAMN %q\n", p.Metadata.CompanyName)
	}
	if p.Metadata.OrgNumber != "" {
		fmt.Fprintf(&b, "#ORGNR %s\n", p.Metadata.OrgNumber)
	}
	fmt.Fprintf(&b, "#VALUTA %s\n", p.Metadata.Currency)
	fmt.Fprintf(&b, "#RAR 0 %s %s\n", p.Metadata.FiscalYearStart.Format("20060102"), p.Metadata.FiscalYearEnd.Format("20060102"))
	for _, a := range p.Accounts {
		fmt.Fprintf(&b, "#KONTO %s %q\n", a.AccountNumber, a.AccountName)
	}
	for _, bal := range p.Balances {
		fmt.Fprintf(&b, "#%s %d %s %.2f\n", bal.Kind, bal.YearIndex, bal.AccountNumber, bal.Amount)
	}
	bySeries := map[string][]domain.SIETransaction{}
	var order []string
	for _, t := range p.Transactions {
		key := t.Series + "-" + t.Number
		if _, ok := bySeries[key]; !ok {
			order = append(order, key)
		}
		bySeries[key] = append(bySeries[key], t)
	}
	for _, key := range order {
		rows := bySeries[key]
		head := rows[0]
		fmt.Fprintf(&b, "#VER %s %s %s %q\n{\n", head.Series, head.Number, head.Date.Format("20060102"), head.Text)
		for _, row := range rows {
			fmt.Fprintf(&b, "#TRANS %s {} %.2f\n", row.AccountNumber, row.Amount)
		}
		fmt.Fprintf(&b, "}\n")
	}
	return b.String(), nil
}
