// Package sniffer detects how a bank statement file is encoded and laid out:
// text encoding, delimiter, header row and which known bank layout it follows.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

// Common bank statement header keywords (multi-language)
var headerKeywords = []string{
	// Portuguese
	"data mov", "descrição", "descricao", "débito", "debito", "crédito", "credito",
	"data valor", "saldo", "categoria", "montante",
	// English
	"date", "description", "amount", "debit", "credit", "balance", "category", "merchant",
	"partner", "reference", "payee", "currency", "type",
	// German
	"buchungsdatum", "betrag", "verwendungszweck", "empfänger", "auftraggeber", "währung",
	// Spanish
	"fecha", "descripción", "descripcion", "importe", "cargo", "abono",
}

// Text encodings reported by Decode.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-bom"
	EncodingUTF16       = "utf-16"
	EncodingWindows1252 = "windows-1252"
)

const maxHeaderSearchLines = 20

var (
	ErrEmptyFile          = errors.New("file is empty")
	ErrUnreadableEncoding = errors.New("file encoding is not readable text")
	ErrNoHeadersFound     = errors.New("could not find data headers")
	ErrInvalidDelimiter   = errors.New("could not detect valid delimiter")
)

// FileConfig holds the detected configuration for a statement
type FileConfig struct {
	Encoding    string
	Delimiter   rune       // The field delimiter (';', ',', '\t', '|')
	SkipLines   int        // Number of preamble lines before headers
	Headers     []string   // Detected header names
	Fingerprint string     // SHA256 hash of normalized headers
	SampleRows  [][]string // First few data rows
	Body        string     // Header line and everything after it
}

// Decode returns data as UTF-8 text. UTF-8 (with or without BOM) passes
// through, UTF-16 with a BOM is transcoded, and other byte streams are read as
// Windows-1252, the usual encoding of legacy bank exports. Binary content fails
// with ErrUnreadableEncoding.
func Decode(data []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		data = data[3:]
		if !utf8.Valid(data) {
			return "", "", fmt.Errorf("%w: invalid UTF-8 after byte order mark", ErrUnreadableEncoding)
		}
		return string(data), EncodingUTF8BOM, nil

	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		dec := xunicode.UTF16(xunicode.LittleEndian, xunicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrUnreadableEncoding, err)
		}
		return string(out), EncodingUTF16, nil
	}

	if bytes.IndexByte(data, 0) >= 0 {
		return "", "", fmt.Errorf("%w: binary content", ErrUnreadableEncoding)
	}

	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}

	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnreadableEncoding, err)
	}
	text := string(out)
	if controlRatio(text) > 0.01 {
		return "", "", fmt.Errorf("%w: too many control characters", ErrUnreadableEncoding)
	}
	return text, EncodingWindows1252, nil
}

func controlRatio(s string) float64 {
	total, controls := 0, 0
	for _, r := range s {
		total++
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			controls++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(controls) / float64(total)
}

// DetectOptions allows callers to override header row or delimiter detection.
type DetectOptions struct {
	// HeaderRowIndex is a 0-based index for the header row. Set to -1 to auto-detect.
	HeaderRowIndex int
	// Delimiter overrides the detected delimiter when non-zero.
	Delimiter rune
}

// DetectConfig decodes data and locates its header row.
func DetectConfig(data []byte) (*FileConfig, error) {
	return DetectConfigWithOptions(data, nil)
}

// DetectConfigWithOptions decodes data and locates its header row with
// optional overrides.
func DetectConfigWithOptions(data []byte, opts *DetectOptions) (*FileConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	text, encoding, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(strings.TrimPrefix(text, "\uFEFF")) == "" {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(text, "\n")

	var (
		delimiter rune
		skipLines int
	)
	if opts != nil && opts.HeaderRowIndex >= 0 {
		if opts.HeaderRowIndex >= len(lines) {
			return nil, ErrNoHeadersFound
		}
		skipLines = opts.HeaderRowIndex
		delimiter = opts.Delimiter
		if delimiter == 0 {
			delimiter, _ = detectDelimiter(cleanLine(lines[skipLines]))
			if delimiter == 0 {
				return nil, ErrInvalidDelimiter
			}
		}
	} else {
		delimiter, skipLines, err = findHeaderRow(lines)
		if err != nil {
			return nil, err
		}
		if opts != nil && opts.Delimiter != 0 {
			delimiter = opts.Delimiter
		}
	}

	body := strings.Join(lines[skipLines:], "\n")
	body = strings.TrimPrefix(body, "\uFEFF")

	reader := NewReader(strings.NewReader(body), delimiter)
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoHeadersFound, err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.Trim(h, "\uFEFF"))
	}

	return &FileConfig{
		Encoding:    encoding,
		Delimiter:   delimiter,
		SkipLines:   skipLines,
		Headers:     headers,
		Fingerprint: generateFingerprint(headers),
		SampleRows:  sampleRows(reader, 10),
		Body:        body,
	}, nil
}

// NewReader returns a csv.Reader configured for bank exports: lazy quotes,
// variable field counts, leading space trimmed.
func NewReader(r io.Reader, delimiter rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader
}

// findHeaderRow locates the header row and its delimiter. Lines that contain
// known header keywords win over plain lines; among them more columns and
// more keywords score higher.
func findHeaderRow(lines []string) (rune, int, error) {
	fallbackIndex := -1
	fallbackDelimiter := rune(0)
	fallbackCount := 0

	keywordIndex := -1
	keywordDelimiter := rune(0)
	keywordScore := 0

	for i, line := range lines {
		if i >= maxHeaderSearchLines {
			break
		}

		line = cleanLine(line)
		if line == "" {
			continue
		}
		lineLower := strings.ToLower(line)

		delimiter, count := detectDelimiter(line)
		if count < 1 {
			continue
		}

		keywordMatches := 0
		for _, kw := range headerKeywords {
			if strings.Contains(lineLower, kw) {
				keywordMatches++
			}
		}

		if keywordMatches > 0 {
			score := count*10 + keywordMatches
			if keywordIndex == -1 || score > keywordScore {
				keywordScore = score
				keywordDelimiter = delimiter
				keywordIndex = i
			}
		} else if count > fallbackCount {
			fallbackCount = count
			fallbackDelimiter = delimiter
			fallbackIndex = i
		}
	}

	if keywordIndex >= 0 {
		return keywordDelimiter, keywordIndex, nil
	}
	if fallbackCount >= 2 {
		return fallbackDelimiter, fallbackIndex, nil
	}
	return 0, 0, ErrNoHeadersFound
}

func cleanLine(line string) string {
	line = strings.TrimRight(line, "\r")
	line = strings.TrimPrefix(line, "\uFEFF")
	return strings.TrimSpace(line)
}

// detectDelimiter counts candidate delimiters outside quoted sections.
func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{';', '\t', ',', '|'}
	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		if counts[d] > bestCount {
			bestCount = counts[d]
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

// generateFingerprint creates a stable hash from header names so a bank's
// export can be recognized again regardless of case or punctuation.
func generateFingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		if clean := normalizeHeader(h); clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

// normalizeHeader lower-cases and keeps only letters and digits.
func normalizeHeader(h string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, h)
}

func sampleRows(reader *csv.Reader, maxRows int) [][]string {
	var rows [][]string
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if isBlankRecord(record) {
			continue
		}
		rows = append(rows, record)
	}
	return rows
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
