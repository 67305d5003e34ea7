package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/echo-importer/internal/domain/categorization"
)

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		rule    categorization.CategorizationRule
		wantErr string
	}{
		{"merchant only", categorization.CategorizationRule{Merchant: "Amazon"}, ""},
		{"pattern only", categorization.CategorizationRule{DescriptionPattern: "order"}, ""},
		{"regex", categorization.CategorizationRule{DescriptionPattern: `^card \d+`, IsRegex: true}, ""},
		{"no condition", categorization.CategorizationRule{}, "needs --merchant"},
		{"regex without pattern", categorization.CategorizationRule{Merchant: "Amazon", IsRegex: true}, "--regex requires --pattern"},
		{"bad regex", categorization.CategorizationRule{DescriptionPattern: "(", IsRegex: true}, "invalid --pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRule(&tt.rule)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRootCommand(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"import", "watch", "migrate", "rules", "categories", "layouts"}, names)

	imp, _, err := root.Find([]string{"import"})
	assert.NoError(t, err)
	assert.NotNil(t, imp.Flags().Lookup("dry-run"))
	assert.NotNil(t, imp.Flags().Lookup("rejects"))
}
