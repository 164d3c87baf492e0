package model

// Update is a single edit to apply to one ledger transaction.
type Update struct {
	TransactionID string
	Description   string
	Category      string
	// RuleCategory is the category chosen without a learned override. It is
	// stored with the tag and not part of the fingerprint.
	RuleCategory string
	// Splits is empty for a single-line update.
	Splits     []Split
	CategoryID int
	// Retag is false for a first-time tag and true when overwriting a prior tag.
	Retag bool
	// Original is the transaction as it was when the update was planned.
	Original Transaction
}

// Fingerprint hashes the content this update writes.
func (u Update) Fingerprint() string {
	return Fingerprint(u.Description, u.CategoryID, u.Splits)
}

// Itemized reports whether the update splits the transaction.
func (u Update) Itemized() bool { return len(u.Splits) > 0 }

// Apply returns a copy of t with the update's content written to it.
func (u Update) Apply(t Transaction) Transaction {
	t.Description = u.Description
	t.CategoryID = u.CategoryID
	t.Category = u.Category
	t.RuleCategory = u.RuleCategory
	t.Splits = nil
	if len(u.Splits) > 0 {
		t.Splits = append([]Split(nil), u.Splits...)
	}
	t.AppliedFingerprint = u.Fingerprint()
	return t
}
