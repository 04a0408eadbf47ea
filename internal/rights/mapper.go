package rights

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hardbanrecords/hardban-lab/internal/blob"
)

const hoursPerDay = 24

// UpdatableColumns are the columns FromAPIUpdateRequest may emit.
var UpdatableColumns = []string{ //nolint:gochecknoglobals
	"release_id", "book_id", "right_type", "territory", "language", "exclusive", "status",
	"start_date", "end_date", "notes", "royalty_rate", "advance_amount", "minimum_guarantee",
	"currency", "revenue_generated", "licensee_name", "licensee_email", "licensee_company",
	"contract_data", "compliance_data", "workflow_data", "publication_data", "transactions",
	"updated_at",
}

// Mapper converts between Record and the API shapes.
type Mapper struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewMapper returns a Mapper logging blob decode failures to logger.
func NewMapper(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}

	return &Mapper{logger: logger, now: time.Now}
}

// ToAPIResponse maps a record to its API shape. A nil record maps to nil.
//
// JSONB columns that fail to decode are logged and left out; the rest of the
// response is still returned.
func (m *Mapper) ToAPIResponse(rec *Record, opts Options) *Right {
	if rec == nil {
		return nil
	}

	now := m.now()

	right := &Right{
		ID:            rec.ID,
		ReleaseID:     rec.ReleaseID,
		BookID:        rec.BookID,
		RightType:     rec.RightType,
		Territory:     rec.Territory,
		Language:      rec.Language,
		Exclusive:     rec.Exclusive,
		Status:        rec.Status,
		StartDate:     rec.StartDate,
		EndDate:       rec.EndDate,
		Notes:         rec.Notes,
		CreatedBy:     rec.CreatedBy,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		IsActive:      isActive(rec, now),
		DaysRemaining: daysRemaining(rec.EndDate, now),
	}

	if opts.IncludeFinancials {
		right.Financials = financials(rec)
	}

	if opts.IncludeLicensee {
		right.Licensee = licensee(rec)
	}

	if opts.IncludeTerritorialInfo {
		right.TerritorialInfo = &TerritorialInfo{
			Territory: LookupTerritory(rec.Territory),
			Language:  LookupLanguage(rec.Language),
		}
	}

	if opts.IncludeContract {
		right.Contract = decodeBlob[Contract](m, rec.ID, "contract_data", rec.ContractData)
	}

	if opts.IncludeCompliance {
		right.Compliance = decodeBlob[Compliance](m, rec.ID, "compliance_data", rec.ComplianceData)
	}

	if opts.IncludeWorkflow {
		right.Workflow = decodeBlob[Workflow](m, rec.ID, "workflow_data", rec.WorkflowData)
	}

	if opts.IncludePublication {
		right.Publication = decodeBlob[Publication](m, rec.ID, "publication_data", rec.PublicationData)
	}

	if opts.IncludeTransactions {
		if txs := decodeBlob[[]Transaction](m, rec.ID, "transactions", rec.Transactions); txs != nil {
			right.Transactions = *txs
		}
	}

	return right
}

// ToAPIResponseList maps each record independently. Nil records, and records whose
// mapping panics, are dropped.
func (m *Mapper) ToAPIResponseList(records []*Record, opts Options) []*Right {
	out := make([]*Right, 0, len(records))

	for _, rec := range records {
		if right := m.safeToAPIResponse(rec, opts); right != nil {
			out = append(out, right)
		}
	}

	return out
}

// FromAPICreateRequest builds a complete record with defaults for every field the
// request leaves out.
func (m *Mapper) FromAPICreateRequest(req *CreateRequest) (*Record, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}

	if strings.TrimSpace(req.RightType) == "" || strings.TrimSpace(req.Territory) == "" {
		return nil, fmt.Errorf("%w: rightType and territory are required", ErrInvalidRequest)
	}

	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, fmt.Errorf("%w: endDate before startDate", ErrInvalidRequest)
	}

	now := m.now().UTC()

	rec := &Record{
		ID:               uuid.NewString(),
		ReleaseID:        req.ReleaseID,
		BookID:           req.BookID,
		RightType:        strings.TrimSpace(req.RightType),
		Territory:        NormalizeTerritory(req.Territory),
		Language:         NormalizeLanguage(defaultString(req.Language, "en")),
		Exclusive:        req.Exclusive != nil && *req.Exclusive,
		Status:           defaultString(req.Status, StatusPending),
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		Notes:            req.Notes,
		CreatedBy:        req.CreatedBy,
		RoyaltyRate:      ptr(0.0),
		AdvanceAmount:    ptr(0.0),
		RevenueGenerated: ptr(0.0),
		Currency:         ptr(defaultCurrency),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if f := req.Financials; f != nil {
		rec.RoyaltyRate = orDefault(f.RoyaltyRate, 0)
		rec.AdvanceAmount = orDefault(f.AdvanceAmount, 0)
		rec.RevenueGenerated = orDefault(f.RevenueGenerated, 0)
		rec.MinimumGuarantee = f.MinimumGuarantee
		rec.Currency = ptr(strings.ToUpper(defaultString(deref(f.Currency), defaultCurrency)))
	}

	if l := req.Licensee; l != nil {
		rec.LicenseeName, rec.LicenseeEmail, rec.LicenseeCompany = l.Name, l.Email, l.Company
	}

	var err error

	encode := func(v any) []byte {
		if err != nil {
			return nil
		}

		var data []byte

		data, err = blob.Encode(v)

		return data
	}

	rec.ContractData = encode(req.Contract)
	rec.ComplianceData = encode(req.Compliance)
	rec.WorkflowData = encode(req.Workflow)
	rec.PublicationData = encode(req.Publication)
	rec.Transactions = encode(nonNilTransactions(req.Transactions))

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return rec, nil
}

// FromAPIUpdateRequest emits only the columns present in req, plus updated_at.
func (m *Mapper) FromAPIUpdateRequest(req *UpdateRequest) (Changes, error) {
	changes := Changes{"updated_at": m.now().UTC()}

	if req == nil {
		return changes, nil
	}

	setIf(changes, "release_id", req.ReleaseID)
	setIf(changes, "book_id", req.BookID)
	setIf(changes, "right_type", req.RightType)
	setIf(changes, "exclusive", req.Exclusive)
	setIf(changes, "status", req.Status)
	setIf(changes, "start_date", req.StartDate)
	setIf(changes, "end_date", req.EndDate)
	setIf(changes, "notes", req.Notes)

	if req.Territory != nil {
		changes["territory"] = NormalizeTerritory(*req.Territory)
	}

	if req.Language != nil {
		changes["language"] = NormalizeLanguage(*req.Language)
	}

	if f := req.Financials; f != nil {
		setIf(changes, "royalty_rate", f.RoyaltyRate)
		setIf(changes, "advance_amount", f.AdvanceAmount)
		setIf(changes, "minimum_guarantee", f.MinimumGuarantee)
		setIf(changes, "revenue_generated", f.RevenueGenerated)

		if f.Currency != nil {
			changes["currency"] = strings.ToUpper(*f.Currency)
		}
	}

	if l := req.Licensee; l != nil {
		setIf(changes, "licensee_name", l.Name)
		setIf(changes, "licensee_email", l.Email)
		setIf(changes, "licensee_company", l.Company)
	}

	blobs := []struct {
		column  string
		present bool
		value   any
	}{
		{"contract_data", req.Contract != nil, req.Contract},
		{"compliance_data", req.Compliance != nil, req.Compliance},
		{"workflow_data", req.Workflow != nil, req.Workflow},
		{"publication_data", req.Publication != nil, req.Publication},
		{"transactions", req.Transactions != nil, req.Transactions},
	}

	for _, b := range blobs {
		if !b.present {
			continue
		}

		data, err := blob.Encode(b.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRequest, b.column, err)
		}

		changes[b.column] = data
	}

	return changes, nil
}

func (m *Mapper) safeToAPIResponse(rec *Record, opts Options) (right *Right) {
	defer func() {
		if r := recover(); r != nil {
			id := ""
			if rec != nil {
				id = rec.ID
			}

			m.logger.Error("failed to map right",
				slog.String("right_id", id),
				slog.Any("panic", r),
			)

			right = nil
		}
	}()

	return m.ToAPIResponse(rec, opts)
}

func decodeBlob[T any](m *Mapper, id, column string, raw []byte) *T {
	var v T

	if err := blob.Decode(raw, &v); err != nil {
		if !errors.Is(err, blob.ErrEmpty) {
			m.logger.Warn("failed to decode right blob",
				slog.String("right_id", id),
				slog.String("column", column),
				slog.String("error", err.Error()),
			)
		}

		return nil
	}

	return &v
}

func financials(rec *Record) *Financials {
	f := &Financials{
		RoyaltyRate:      deref(rec.RoyaltyRate),
		AdvanceAmount:    deref(rec.AdvanceAmount),
		MinimumGuarantee: rec.MinimumGuarantee,
		Currency:         defaultString(deref(rec.Currency), defaultCurrency),
		RevenueGenerated: deref(rec.RevenueGenerated),
	}

	f.RoyaltiesEarned = math.Round(f.RevenueGenerated*f.RoyaltyRate) / 100 //nolint:mnd // rate is a percentage
	f.AdvanceRecouped = f.RoyaltiesEarned >= f.AdvanceAmount

	return f
}

func licensee(rec *Record) *Licensee {
	if rec.LicenseeName == nil && rec.LicenseeEmail == nil && rec.LicenseeCompany == nil {
		return nil
	}

	return &Licensee{Name: rec.LicenseeName, Email: rec.LicenseeEmail, Company: rec.LicenseeCompany}
}

func isActive(rec *Record, now time.Time) bool {
	if rec.Status != StatusActive {
		return false
	}

	if rec.StartDate != nil && now.Before(*rec.StartDate) {
		return false
	}

	return rec.EndDate == nil || !now.After(*rec.EndDate)
}

// daysRemaining rounds up partial days and never goes below zero.
func daysRemaining(end *time.Time, now time.Time) *int {
	if end == nil {
		return nil
	}

	days := int(math.Ceil(end.Sub(now).Hours() / hoursPerDay))

	return ptr(max(days, 0))
}

func nonNilTransactions(txs []Transaction) any {
	if txs == nil {
		return nil
	}

	return txs
}

func setIf[T any](changes Changes, column string, v *T) {
	if v != nil {
		changes[column] = *v
	}
}

func ptr[T any](v T) *T { return &v }

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}

	return *v
}

func orDefault[T any](v *T, def T) *T {
	if v == nil {
		return &def
	}

	return v
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}

	return strings.TrimSpace(v)
}

func sortedKeys(c Changes) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
