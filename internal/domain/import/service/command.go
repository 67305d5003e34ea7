package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-importer/pkg/config"
	"github.com/FACorreiaa/echo-importer/pkg/money"
)

// MaxContentBytes is the default upper bound on CSVContent. A file of
// exactly this size is accepted.
const MaxContentBytes = config.DefaultMaxContentBytes

// ImportTransactionsCommand describes one import request.
type ImportTransactionsCommand struct {
	CSVContent string
	Currency   string

	AutoCategorizationEnabled bool
	DuplicateDetectionEnabled bool
	// SkipDuplicates drops rows already stored for the account. When false
	// they are imported and flagged as duplicates instead.
	SkipDuplicates bool

	UserID    uuid.UUID
	AccountID uuid.UUID
	// SourceName is the original file name, used when archiving.
	SourceName string

	// Location applies to dates without zone information. Nil means UTC.
	Location *time.Location
	// HeaderLine forces the 1-based header line. Zero auto-detects.
	HeaderLine int
}

// NewImportTransactionsCommand returns a command with the default currency
// and every pipeline stage enabled.
func NewImportTransactionsCommand(userID, accountID uuid.UUID, content string) ImportTransactionsCommand {
	return ImportTransactionsCommand{
		CSVContent:                content,
		Currency:                  money.DefaultCurrency,
		AutoCategorizationEnabled: true,
		DuplicateDetectionEnabled: true,
		SkipDuplicates:            true,
		UserID:                    userID,
		AccountID:                 accountID,
	}
}

// ValidationResult lists every problem found in a command.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidationError is returned when a command is rejected before any work.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid import command: " + strings.Join(e.Errors, "; ")
}

// IsValid checks the command against the default size limit.
func (c ImportTransactionsCommand) IsValid() ValidationResult {
	return c.validate(MaxContentBytes)
}

// Validate returns a *ValidationError when IsValid reports problems.
func (c ImportTransactionsCommand) Validate() error {
	return c.validationError(MaxContentBytes)
}

func (c ImportTransactionsCommand) validationError(maxBytes int64) error {
	if res := c.validate(maxBytes); !res.Valid {
		return &ValidationError{Errors: res.Errors}
	}
	return nil
}

func (c ImportTransactionsCommand) validate(maxBytes int64) ValidationResult {
	var errs []string

	if strings.TrimSpace(c.CSVContent) == "" {
		errs = append(errs, "CSV content cannot be empty")
	}
	if int64(len(c.CSVContent)) > maxBytes {
		errs = append(errs, fmt.Sprintf("CSV content exceeds the maximum size of %s", formatBytes(maxBytes)))
	}

	if len(c.Currency) != 3 {
		errs = append(errs, "Currency must be a 3-letter code")
	}
	if !money.IsSupportedCurrency(c.Currency) {
		errs = append(errs, fmt.Sprintf("Unsupported currency: %s", c.Currency))
	}

	if c.AccountID == uuid.Nil {
		errs = append(errs, "Account ID is required")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func formatBytes(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MiB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
