package service

import (
	"context"
	"testing"
	"time"

	"medsupply/internal/apperror"
	"medsupply/internal/model"
	"medsupply/internal/repository/repotest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryLedger_CreateRawMaterialRecordsOpeningStock(t *testing.T) {
	f := newFixture(t)
	m := f.material(t, "RM-1", "Tulsi", "40", "90")

	entries, total, err := f.ledger.ListTransactions(f.ctx, f.mfrActor, m.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, model.TxTypeAdjustment, entries[0].Type)
	assert.True(t, dec("40").Equal(entries[0].Quantity))

	_, err = f.ledger.CreateRawMaterial(f.ctx, f.mfrActor, CreateRawMaterialRequest{SKU: "RM-1", Name: "Tulsi again", Unit: "kg"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = f.ledger.CreateRawMaterial(f.ctx, f.clinicActor, CreateRawMaterialRequest{SKU: "RM-2", Name: "Neem", Unit: "kg"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestInventoryLedger_AddStockAveragesCost(t *testing.T) {
	f := newFixture(t)
	m := f.material(t, "RM-1", "Tulsi", "100", "10")

	entry, err := f.ledger.AddStock(f.ctx, f.mfrActor, m.ID, AddStockRequest{Quantity: dec("50"), UnitCost: dec("16"), Notes: "GRN-118"})
	require.NoError(t, err)
	assert.Equal(t, model.TxTypePurchase, entry.Type)
	assert.True(t, dec("800").Equal(entry.TotalCost))
	assert.True(t, dec("150").Equal(entry.StockAfter))

	got := f.reload(t, m.ID)
	assert.True(t, dec("150").Equal(got.CurrentStock))
	assert.True(t, dec("12").Equal(got.UnitCost))

	_, err = f.ledger.AddStock(f.ctx, f.mfrActor, m.ID, AddStockRequest{Quantity: dec("0"), UnitCost: dec("1")})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = f.ledger.AddStock(f.ctx, f.mfrActor, uuid.New(), AddStockRequest{Quantity: dec("1"), UnitCost: dec("1")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	assert.Contains(t, f.events.names(), EventStockChanged)
}

func TestInventoryLedger_AdjustStock(t *testing.T) {
	f := newFixture(t)
	m := f.material(t, "RM-1", "Tulsi", "20", "10")

	_, err := f.ledger.AdjustStock(f.ctx, f.mfrActor, m.ID, AdjustStockRequest{Type: model.TxTypeExpired, Quantity: dec("5"), Notes: "lot 7 expired"})
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(f.reload(t, m.ID).CurrentStock))

	_, err = f.ledger.AdjustStock(f.ctx, f.mfrActor, m.ID, AdjustStockRequest{Type: model.TxTypeAdjustment, Quantity: dec("-3"), Notes: "cycle count"})
	require.NoError(t, err)
	assert.True(t, dec("12").Equal(f.reload(t, m.ID).CurrentStock))

	_, err = f.ledger.AdjustStock(f.ctx, f.mfrActor, m.ID, AdjustStockRequest{Type: model.TxTypeReturnOut, Quantity: dec("13"), Notes: "return to supplier"})
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.True(t, dec("12").Equal(f.reload(t, m.ID).CurrentStock))

	_, err = f.ledger.AdjustStock(f.ctx, f.mfrActor, m.ID, AdjustStockRequest{Type: model.TxTypeSale, Quantity: dec("1"), Notes: "x"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.ledger.AdjustStock(f.ctx, f.mfrActor, m.ID, AdjustStockRequest{Type: model.TxTypeAdjustment, Quantity: dec("0"), Notes: "x"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	discrepancies, err := f.ledger.Reconcile(f.ctx, f.mfrActor, uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, discrepancies)
}

func TestInventoryLedger_ReconcileFindsDrift(t *testing.T) {
	f := newFixture(t)
	m := f.material(t, "RM-1", "Tulsi", "20", "10")
	f.material(t, "RM-2", "Neem", "8", "10")

	require.NoError(t, f.db.Model(&model.RawMaterial{}).Where("id = ?", m.ID).Update("current_stock", dec("25")).Error)

	discrepancies, err := f.ledger.Reconcile(f.ctx, f.mfrActor, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)
	assert.Equal(t, m.ID, discrepancies[0].RawMaterialID)
	assert.True(t, dec("20").Equal(discrepancies[0].LedgerStock))
	assert.True(t, dec("5").Equal(discrepancies[0].Difference))

	_, err = f.ledger.Reconcile(f.ctx, f.admin, uuid.Nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)
	byAdmin, err := f.ledger.Reconcile(f.ctx, f.admin, f.mfr.ID)
	require.NoError(t, err)
	assert.Len(t, byAdmin, 1)

	_, err = f.ledger.Reconcile(f.ctx, f.clinicActor, f.mfr.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestInventoryLedger_LowStockAndList(t *testing.T) {
	f := newFixture(t)
	f.material(t, "RM-1", "Tulsi", "3", "10")
	f.material(t, "RM-2", "Neem", "30", "10")

	low, err := f.ledger.LowStock(f.ctx, f.mfrActor)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Tulsi", low[0].Name)

	list, total, err := f.ledger.ListRawMaterials(f.ctx, f.mfrActor, 1, 20, "nee")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "Neem", list[0].Name)
}

func TestInventoryLedger_StockMoversRequireTransaction(t *testing.T) {
	f := newFixture(t)
	m := f.material(t, "RM-1", "Tulsi", "20", "10")

	_, err := f.ledger.Consume(context.Background(), m, dec("1"), uuid.New(), f.mfrActor)
	assert.ErrorIs(t, err, errNoTransaction)
	assert.True(t, dec("20").Equal(f.reload(t, m.ID).CurrentStock))
}

func TestFormulaService_PreviewScale(t *testing.T) {
	f := newFixture(t)
	h := f.herbal(t, "2")

	preview, err := f.formulas.PreviewScale(f.ctx, f.mfrActor, h.formula.ID, dec("10"))
	require.NoError(t, err)
	assert.False(t, preview.CanProduce)
	require.Len(t, preview.Lines, 3)
	assert.Equal(t, "Turmeric", preview.Lines[0].Name)
	assert.True(t, dec("6").Equal(preview.Lines[0].RequiredQuantity))
	assert.True(t, preview.Lines[0].Shortfall.IsZero())
	assert.True(t, dec("1").Equal(preview.Lines[2].Shortfall), "ashwagandha needs 3 with 2 on hand")

	_, err = f.formulas.CreateFormula(f.ctx, f.mfrActor, CreateFormulaRequest{
		Name:              "Broken",
		StandardBatchSize: dec("10"),
		Unit:              "kg",
		Items: []FormulaItemRequest{
			{RawMaterialID: h.ginger.ID, Quantity: dec("1")},
			{RawMaterialID: h.ginger.ID, Quantity: dec("2")},
		},
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	formulas, total, err := f.formulas.ListFormulas(f.ctx, f.mfrActor, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, formulas, 1)
}

func TestAuditService_ScopesByOrganisation(t *testing.T) {
	f := newFixture(t)
	f.material(t, "RM-1", "Tulsi", "20", "10")

	logs, total, err := f.audit.GetAuditLogs(f.ctx, f.mfrActor, model.ActionCreateRawMaterial, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "Tulsi", logs[0].EntityName)
	assert.Contains(t, string(logs[0].Details), "RM-1")

	clinicAdmin := model.Actor{UserID: uuid.New(), OrganisationID: f.clinic.ID, Role: model.RoleClinicAdmin}
	_, total, err = f.audit.GetAuditLogs(f.ctx, clinicAdmin, "", 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = f.audit.GetAuditLogs(f.ctx, f.clinicActor, "", 1, 20)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, total, err = f.audit.GetAuditLogs(f.ctx, f.admin, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestReportService_ProductionSummary(t *testing.T) {
	f := newFixture(t)
	h := f.herbal(t, "30")

	batch, err := f.batches.StartBatch(f.ctx, f.mfrActor, StartBatchRequest{FormulaID: h.formula.ID, PlannedQuantity: dec("10")})
	require.NoError(t, err)
	_, err = f.batches.CompleteBatch(f.ctx, f.mfrActor, batch.ID, CompleteBatchRequest{ActualYield: decPtr("10")})
	require.NoError(t, err)
	_, err = f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{{ProductID: h.product.ID, Quantity: 5}}})
	require.NoError(t, err)
	// more units but less revenue than the churna
	sachet := repotest.Product(t, f.db, f.mfr.ID, "P-SAC", "Tulsi Sachet", "10", "0", "100")
	_, err = f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{{ProductID: sachet.ID, Quantity: 20}}})
	require.NoError(t, err)

	from := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	summary, err := f.reports.ProductionSummary(f.ctx, f.mfrActor, uuid.Nil, from, to)
	require.NoError(t, err)

	require.Len(t, summary.Batches, 1)
	assert.Equal(t, model.BatchStatusCompleted, summary.Batches[0].Status)
	assert.Equal(t, int64(1), summary.Batches[0].Batches)
	require.Len(t, summary.TopProducts, 2)
	assert.Equal(t, h.product.ID, summary.TopProducts[0].ProductID)
	assert.Equal(t, int64(5), summary.TopProducts[0].Quantity)
	assert.True(t, dec("560").Equal(summary.TopProducts[0].Revenue), summary.TopProducts[0].Revenue.String())
	assert.Equal(t, sachet.ID, summary.TopProducts[1].ProductID)
	assert.Equal(t, int64(20), summary.TopProducts[1].Quantity)
	assert.True(t, dec("760").Equal(summary.TopRevenue), summary.TopRevenue.String())

	_, err = f.reports.ProductionSummary(f.ctx, f.mfrActor, uuid.Nil, to, from)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
