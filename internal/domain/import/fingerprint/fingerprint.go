// Package fingerprint derives the two stable digests of a canonical
// transaction: Hash for duplicate detection and PatternHash for rule
// re-matching. Both are pure functions of the transaction.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
)

// Fingerprinted is a transaction together with its digests.
type Fingerprinted struct {
	Tx          normalizer.ParsedTransaction
	Hash        string
	PatternHash string
}

// Hash returns the hex SHA-256 of the amount, calendar date and normalized
// description. Two exports of the same statement that differ only in case,
// spacing or trailing zeros collide.
func Hash(t normalizer.ParsedTransaction) string {
	return digest(projection(t))
}

// PatternHash returns the hex SHA-256 of the cleaned merchant and the
// normalized description. Amount and date do not take part, so every
// occurrence of a recurring payment shares it.
func PatternHash(t normalizer.ParsedTransaction) string {
	merchant := ""
	if t.Counterparty != normalizer.UnknownMerchant {
		merchant = NormalizeDescription(normalizer.CleanMerchantName(t.Counterparty))
	}
	return digest("merchant=" + merchant + "\ndescription=" + NormalizeDescription(t.Description))
}

// NormalizeDescription lower-cases, NFC-normalizes and collapses whitespace.
func NormalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(s))), " ")
}

// Fingerprint computes both digests of t.
func Fingerprint(t normalizer.ParsedTransaction) Fingerprinted {
	return Fingerprinted{Tx: t, Hash: Hash(t), PatternHash: PatternHash(t)}
}

// Deduplicate fingerprints txs and splits them into first occurrences and
// repeats of an earlier row. Both slices keep input order.
func Deduplicate(txs []normalizer.ParsedTransaction) (unique, dups []Fingerprinted) {
	seen := make(map[string]struct{}, len(txs))
	unique = make([]Fingerprinted, 0, len(txs))
	for _, t := range txs {
		fp := Fingerprint(t)
		if _, ok := seen[fp.Hash]; ok {
			dups = append(dups, fp)
			continue
		}
		seen[fp.Hash] = struct{}{}
		unique = append(unique, fp)
	}
	return unique, dups
}

// Hashes returns the Hash of every entry, in order.
func Hashes(fps []Fingerprinted) []string {
	out := make([]string, len(fps))
	for i, fp := range fps {
		out[i] = fp.Hash
	}
	return out
}

func projection(t normalizer.ParsedTransaction) string {
	var b strings.Builder
	b.WriteString("amount=")
	b.WriteString(t.Amount.Value().String())
	b.WriteString("\ndate=")
	b.WriteString(t.TransactionDate.Format("2006-01-02"))
	b.WriteString("\ndescription=")
	b.WriteString(NormalizeDescription(t.Description))
	return b.String()
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
