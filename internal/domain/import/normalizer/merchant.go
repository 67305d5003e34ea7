package normalizer

import (
	"regexp"
	"strings"
)

var merchantPrefixes = []string{
	"COMPRA ", "COMPRAS ", "PAGAMENTO ", "PAG ", "PGO ",
	"TRF ", "TRANSF ", "TRANSFERENCIA ",
	"MB WAY ", "MBWAY ", "MULTIBANCO ",
	"VISA ", "MASTERCARD ", "MAESTRO ",
	"PURCHASE ", "PAYMENT ", "POS ", "CARD ",
	"KARTENZAHLUNG ", "LASTSCHRIFT ", "ÜBERWEISUNG ",
}

var (
	trailingRefPattern  = regexp.MustCompile(`\s+\d{4,}$`)
	trailingDatePattern = regexp.MustCompile(`\s+\d{1,2}[/.]\d{1,2}([/.]\d{2,4})?\.?$`)
	cardMaskPattern     = regexp.MustCompile(`\*+\d*`)
)

// CleanMerchantName strips card/transfer prefixes, masked card numbers and
// trailing reference numbers or dates from a counterparty string, so that
// "COMPRA PINGO DOCE 123456" and "Pingo Doce 12/01" clean to the same text.
func CleanMerchantName(raw string) string {
	result := CleanDescription(raw)

	for _, prefix := range merchantPrefixes {
		if len(result) >= len(prefix) && strings.EqualFold(result[:len(prefix)], prefix) {
			result = result[len(prefix):]
			break
		}
	}

	result = cardMaskPattern.ReplaceAllString(result, " ")
	// Trailing refs and dates can stack ("SHOP 12/01 998877").
	for i := 0; i < 2; i++ {
		result = trailingRefPattern.ReplaceAllString(result, "")
		result = trailingDatePattern.ReplaceAllString(result, "")
	}

	return CleanDescription(result)
}
