package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"medsupply/internal/model"
	"medsupply/internal/repository"
	"medsupply/internal/repository/repotest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type publishedEvent struct {
	name string
	data any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(event string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{name: event, data: data})
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

var fixedNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

type fixture struct {
	ctx    context.Context
	db     *gorm.DB
	events *recordingPublisher

	materials repository.RawMaterialRepository
	products  repository.ProductRepository
	ledgerTx  repository.InventoryTxRepository

	ledger   InventoryLedgerService
	formulas FormulaService
	stages   ProcessStageService
	batches  BatchService
	orders   OrderService
	audit    AuditService
	reports  ReportService

	mfr    *model.Organisation
	clinic *model.Organisation

	mfrActor    model.Actor
	clinicActor model.Actor
	admin       model.Actor
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, BatchOptions{})
}

func newFixtureWith(t *testing.T, batchOpts BatchOptions) *fixture {
	t.Helper()
	db := repotest.NewDB(t)

	f := &fixture{
		ctx:       context.Background(),
		db:        db,
		events:    &recordingPublisher{},
		materials: repository.NewRawMaterialRepository(db),
		products:  repository.NewProductRepository(db),
		ledgerTx:  repository.NewInventoryTxRepository(db),
	}

	orgRepo := repository.NewOrganisationRepository(db)
	formulaRepo := repository.NewFormulaRepository(db)
	stageRepo := repository.NewProcessStageRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	seqRepo := repository.NewSequenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	reportRepo := repository.NewLedgerReportRepository(db)
	tm := repository.NewTransactionManager(db, 0)

	f.ledger = NewInventoryLedgerService(f.materials, f.products, f.ledgerTx, reportRepo, auditRepo, tm, f.events)
	f.formulas = NewFormulaService(formulaRepo, f.materials, f.products, auditRepo, tm)
	f.stages = NewProcessStageService(stageRepo, auditRepo, tm)
	if batchOpts.Now == nil {
		batchOpts.Now = func() time.Time { return fixedNow }
	}
	f.batches = NewBatchService(batchRepo, formulaRepo, f.materials, f.products, stageRepo, f.ledgerTx, seqRepo, auditRepo, tm, f.ledger, f.events, batchOpts)
	f.orders = NewOrderService(orderRepo, f.products, orgRepo, seqRepo, auditRepo, tm, f.ledger, f.events, OrderOptions{
		Now: func() time.Time { return fixedNow },
	})
	f.audit = NewAuditService(auditRepo)
	f.reports = NewReportService(reportRepo, f.materials)

	f.mfr = repotest.Organisation(t, db, "Ayur Labs", model.OrgTypeManufacturer)
	f.mfr.CommissionRate = decimal.NewFromInt(10)
	require.NoError(t, db.Save(f.mfr).Error)
	f.clinic = repotest.Organisation(t, db, "Sunrise Clinic", model.OrgTypeClinic)

	f.mfrActor = model.Actor{UserID: uuid.New(), OrganisationID: f.mfr.ID, OrganisationType: model.OrgTypeManufacturer, Role: model.RoleManufacturerAdmin}
	f.clinicActor = model.Actor{UserID: uuid.New(), OrganisationID: f.clinic.ID, OrganisationType: model.OrgTypeClinic, Role: model.RoleClinicStaff}
	f.admin = model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// material creates a raw material through the ledger so it has an opening entry
func (f *fixture) material(t *testing.T, sku, name, stock, cost string) *model.RawMaterial {
	t.Helper()
	m, err := f.ledger.CreateRawMaterial(f.ctx, f.mfrActor, CreateRawMaterialRequest{
		SKU:          sku,
		Name:         name,
		Unit:         "kg",
		OpeningStock: dec(stock),
		UnitCost:     dec(cost),
		ReorderPoint: dec("5"),
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *model.RawMaterial {
	t.Helper()
	m, err := f.materials.FindByID(f.ctx, id)
	require.NoError(t, err)
	return m
}

func (f *fixture) productStock(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	p, err := f.products.FindByID(f.ctx, id)
	require.NoError(t, err)
	return p.StockQuantity
}

// herbalFormula is a 100 kg recipe of turmeric 60, ginger 10 and ashwagandha 30
type herbalFormula struct {
	formula     *model.ManufacturingFormula
	turmeric    *model.RawMaterial
	ginger      *model.RawMaterial
	ashwagandha *model.RawMaterial
	product     *model.Product
}

func (f *fixture) herbal(t *testing.T, ashwagandhaStock string) herbalFormula {
	t.Helper()
	h := herbalFormula{
		turmeric:    f.material(t, "RM-TUR", "Turmeric", "100", "200"),
		ginger:      f.material(t, "RM-GIN", "Ginger", "50", "150"),
		ashwagandha: f.material(t, "RM-ASH", "Ashwagandha", ashwagandhaStock, "400"),
		product:     repotest.Product(t, f.db, f.mfr.ID, "P-IMM", "Immunity Churna", "100", "12", "0"),
	}

	formula, err := f.formulas.CreateFormula(f.ctx, f.mfrActor, CreateFormulaRequest{
		Name:              "Immunity Churna",
		StandardBatchSize: dec("100"),
		Unit:              "kg",
		TargetProductID:   &h.product.ID,
		Items: []FormulaItemRequest{
			{RawMaterialID: h.turmeric.ID, Quantity: dec("60")},
			{RawMaterialID: h.ginger.ID, Quantity: dec("10")},
			{RawMaterialID: h.ashwagandha.ID, Quantity: dec("30")},
		},
	})
	require.NoError(t, err)
	h.formula = formula
	return h
}
