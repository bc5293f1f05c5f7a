package handler

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type amounts struct {
	Quantity decimal.Decimal `json:"quantity" binding:"dpos"`
	UnitCost decimal.Decimal `json:"unit_cost" binding:"dgte0"`
}

func TestSetupValidator_DecimalTags(t *testing.T) {
	SetupValidator()

	tests := []struct {
		name    string
		in      amounts
		wantErr bool
	}{
		{"positive quantity, zero cost", amounts{decimal.NewFromInt(5), decimal.Zero}, false},
		{"fractional quantity", amounts{decimal.RequireFromString("0.0001"), decimal.NewFromInt(3)}, false},
		{"zero quantity", amounts{decimal.Zero, decimal.Zero}, true},
		{"negative quantity", amounts{decimal.NewFromInt(-1), decimal.Zero}, true},
		{"negative cost", amounts{decimal.NewFromInt(1), decimal.NewFromInt(-2)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
