// Package ofx imports OFX/QFX bank and card statements as ledger transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/Veraticus/order-tagger/internal/model"
)

// typeCategories assigns categories from the OFX transaction type. Everything
// else is left for the ledger to categorize.
var typeCategories = map[string]string{
	"INT":    "Interest",
	"FEE":    "Bank Fees",
	"SRVCHG": "Bank Fees",
	"ATM":    "Cash & ATM",
}

// cardPrefixes are processor boilerplate some banks put in front of the payee.
var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"DEBIT PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
}

// genericNames carry no merchant information; the memo is used instead.
var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagPattern  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	leadingDate     = regexp.MustCompile(`^\d{2}/\d{2} `)
)

// Parser reads OFX/QFX statements.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// statement is one bank or card statement of a response.
type statement struct {
	list    *ofxgo.TransactionList
	account string
	kind    string
}

// ParseFile parses an OFX/QFX file into ledger transactions. Amounts are
// flipped to the ledger convention: debits positive, credits negative.
// Transactions that cannot be converted are logged and skipped.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader) ([]model.Transaction, error) {
	stmts, err := readStatements(reader)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	for _, st := range stmts {
		if st.list == nil {
			continue
		}
		for _, raw := range st.list.Transactions {
			tx, err := convert(raw, st.account)
			if err != nil {
				slog.Warn("Skipping OFX transaction", "account", st.account, "kind", st.kind, "error", err)
				continue
			}
			transactions = append(transactions, tx)
		}
	}

	slog.Info("Parsed OFX file", "statements", len(stmts), "transactions", len(transactions))
	return transactions, nil
}

// GetAccounts returns the sorted, unique account ids of the statements in reader.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	stmts, err := readStatements(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var accounts []string
	for _, st := range stmts {
		if st.account != "" && !seen[st.account] {
			seen[st.account] = true
			accounts = append(accounts, st.account)
		}
	}
	sort.Strings(accounts)
	return accounts, nil
}

func readStatements(reader io.Reader) ([]statement, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(normalizeSGML(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var stmts []statement
	for _, msg := range resp.Bank {
		if st, ok := msg.(*ofxgo.StatementResponse); ok {
			stmts = append(stmts, statement{kind: "bank", account: string(st.BankAcctFrom.AcctID), list: st.BankTranList})
		}
	}
	for _, msg := range resp.CreditCard {
		if st, ok := msg.(*ofxgo.CCStatementResponse); ok {
			stmts = append(stmts, statement{kind: "card", account: string(st.CCAcctFrom.AcctID), list: st.BankTranList})
		}
	}
	return stmts, nil
}

// normalizeSGML repairs what banks commonly get wrong in SGML-style files:
// leading blank lines, mixed-case severities and unclosed tags.
func normalizeSGML(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

func convert(raw ofxgo.Transaction, account string) (model.Transaction, error) {
	amount, err := model.ParseMicro(raw.TrnAmt.FloatString(6))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", raw.FiTID, err)
	}

	tx := model.Transaction{
		ID:          string(raw.FiTID),
		Date:        raw.DtPosted.Time.UTC(),
		Merchant:    merchantName(raw),
		Description: strings.TrimSpace(string(raw.Name)),
		Amount:      -amount, // OFX debits are negative
		AccountID:   account,
		Category:    typeCategories[raw.TrnType.String()],
	}
	if tx.Description == "" {
		tx.Description = tx.Merchant
	}
	return tx, nil
}

// merchantName prefers the payee, then the name (or the memo when the name
// is generic) stripped of card-processor boilerplate.
func merchantName(raw ofxgo.Transaction) string {
	if raw.Payee != nil && raw.Payee.Name != "" {
		return string(raw.Payee.Name)
	}

	name := string(raw.Name)
	if raw.Memo != "" && genericNames[strings.ToUpper(strings.TrimSpace(name))] {
		name = string(raw.Memo)
	}
	name = strings.TrimSpace(name)

	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	if loc := leadingDate.FindStringIndex(name); loc != nil && len(name) > loc[1] {
		name = strings.TrimSpace(name[loc[1]:])
	}
	return name
}
