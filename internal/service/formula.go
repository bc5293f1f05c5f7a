package service

import (
	"medsupply/internal/apperror"
	"medsupply/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// quantityPlaces is the storage precision of stock quantities
const quantityPlaces = 4

// ScaledRequirement is one ingredient of a formula scaled to a target quantity
type ScaledRequirement struct {
	RawMaterialID    uuid.UUID       `json:"raw_material_id"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit"`
	FormulaQuantity  decimal.Decimal `json:"formula_quantity"`
	RequiredQuantity decimal.Decimal `json:"required_quantity"`
}

// ScaledFormula is the result of ScaleFormula
type ScaledFormula struct {
	FormulaID         uuid.UUID           `json:"formula_id"`
	FormulaName       string              `json:"formula_name"`
	StandardBatchSize decimal.Decimal     `json:"standard_batch_size"`
	Quantity          decimal.Decimal     `json:"quantity"`
	Unit              string              `json:"unit"`
	ScaleFactor       decimal.Decimal     `json:"scale_factor"`
	Requirements      []ScaledRequirement `json:"requirements"`
}

// ScaleFormula computes the raw material needed to produce quantity units with
// the given formula: each item quantity is multiplied by quantity/standard
// batch size. Items keep their formula order. Required quantities are rounded
// to the stock precision, and a requirement that rounds to zero is rejected;
// scaling to the standard size returns the formula quantities unchanged.
func ScaleFormula(formula *model.ManufacturingFormula, quantity decimal.Decimal) (*ScaledFormula, error) {
	if !formula.StandardBatchSize.IsPositive() {
		return nil, apperror.Validation("formula %s has a non-positive standard batch size", formula.Name)
	}
	if !quantity.IsPositive() {
		return nil, apperror.Validation("planned quantity must be positive, got %s", quantity.String())
	}

	out := &ScaledFormula{
		FormulaID:         formula.ID,
		FormulaName:       formula.Name,
		StandardBatchSize: formula.StandardBatchSize,
		Quantity:          quantity,
		Unit:              formula.Unit,
		ScaleFactor:       quantity.Div(formula.StandardBatchSize),
		Requirements:      make([]ScaledRequirement, 0, len(formula.Items)),
	}

	exact := quantity.Equal(formula.StandardBatchSize)
	for _, item := range formula.Items {
		required := item.Quantity
		if !exact {
			// multiply before dividing so factors like 1/3 do not lose precision
			required = item.Quantity.Mul(quantity).Div(formula.StandardBatchSize).Round(quantityPlaces)
		}
		if !required.IsPositive() {
			return nil, apperror.Validation("planned quantity %s is too small: the requirement for %s rounds to zero at %d decimal places of stock precision",
				quantity.String(), item.RawMaterial.Name, quantityPlaces)
		}
		out.Requirements = append(out.Requirements, ScaledRequirement{
			RawMaterialID:    item.RawMaterialID,
			Name:             item.RawMaterial.Name,
			Unit:             item.RawMaterial.Unit,
			FormulaQuantity:  item.Quantity,
			RequiredQuantity: required,
		})
	}
	return out, nil
}
