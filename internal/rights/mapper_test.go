package rights

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMapper(t *testing.T) (*Mapper, *bytes.Buffer) {
	t.Helper()

	var logs bytes.Buffer

	m := NewMapper(slog.New(slog.NewJSONHandler(&logs, nil)))
	m.now = func() time.Time { return fixedNow }

	return m, &logs
}

func sampleRecord() *Record {
	start := fixedNow.AddDate(0, -1, 0)
	end := fixedNow.Add(36 * time.Hour)

	return &Record{
		ID:               "r-1",
		ReleaseID:        ptr("rel-9"),
		RightType:        "streaming",
		Territory:        "US",
		Language:         "en",
		Exclusive:        true,
		Status:           StatusActive,
		StartDate:        &start,
		EndDate:          &end,
		LicenseeName:     ptr("Nordic Sounds"),
		RoyaltyRate:      ptr(12.5),
		AdvanceAmount:    ptr(100.0),
		RevenueGenerated: ptr(1000.0),
		ContractData:     []byte(`{"contractNumber":"HB-2026-001","autoRenew":true}`),
		WorkflowData:     []byte(`"{\"stage\":\"legal-review\"}"`),
		ComplianceData:   []byte(`{"status":`),
		Transactions:     []byte(`[{"id":"t1","type":"advance","amount":100,"currency":"USD","occurredAt":"2026-05-01T00:00:00Z"}]`),
		CreatedAt:        start,
		UpdatedAt:        start,
	}
}

func TestToAPIResponse_NilRecord(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	m, _ := newTestMapper(t)

	assert.Nil(t, m.ToAPIResponse(nil, AllOptions()))
}

func TestToAPIResponse_BaseFieldsOnly(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	m, _ := newTestMapper(t)

	right := m.ToAPIResponse(sampleRecord(), Options{})
	require.NotNil(t, right)

	assert.Equal(t, "r-1", right.ID)
	assert.Equal(t, "streaming", right.RightType)
	assert.True(t, right.IsActive)
	require.NotNil(t, right.DaysRemaining)
	assert.Equal(t, 2, *right.DaysRemaining, "partial days round up")
	assert.Nil(t, right.Financials)
	assert.Nil(t, right.Contract)
	assert.Nil(t, right.TerritorialInfo)
	assert.Nil(t, right.Transactions)
}

func TestToAPIResponse_OptionsAndTolerantBlobs(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	m, logs := newTestMapper(t)

	right := m.ToAPIResponse(sampleRecord(), AllOptions())
	require.NotNil(t, right)

	require.NotNil(t, right.Financials)
	assert.Equal(t, 12.5, right.Financials.RoyaltyRate)
	assert.Equal(t, "USD", right.Financials.Currency, "missing currency defaults")
	assert.Equal(t, 125.0, right.Financials.RoyaltiesEarned)
	assert.True(t, right.Financials.AdvanceRecouped)
	assert.Nil(t, right.Financials.MinimumGuarantee)

	require.NotNil(t, right.Contract)
	assert.Equal(t, "HB-2026-001", right.Contract.ContractNumber)

	require.NotNil(t, right.Workflow, "string-encoded blobs decode")
	assert.Equal(t, "legal-review", right.Workflow.Stage)

	assert.Nil(t, right.Compliance, "malformed blob yields nil")
	assert.Contains(t, logs.String(), `"column":"compliance_data"`)
	assert.Contains(t, logs.String(), `"right_id":"r-1"`)

	assert.Nil(t, right.Publication, "absent blob yields nil without logging")
	assert.NotContains(t, logs.String(), "publication_data")

	require.Len(t, right.Transactions, 1)
	assert.Equal(t, 100.0, right.Transactions[0].Amount)

	require.NotNil(t, right.Licensee)
	assert.Equal(t, "Nordic Sounds", *right.Licensee.Name)

	require.NotNil(t, right.TerritorialInfo)
	assert.Equal(t, "United States", right.TerritorialInfo.Territory.Name)
	assert.Equal(t, "English", right.TerritorialInfo.Language.Name)
}

func TestToAPIResponse_DerivedStatus(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	m, _ := newTestMapper(t)

	expired := sampleRecord()
	past := fixedNow.AddDate(0, 0, -3)
	expired.EndDate = &past

	right := m.ToAPIResponse(expired, Options{})
	assert.False(t, right.IsActive)
	assert.Equal(t, 0, *right.DaysRemaining, "never negative")

	pending := sampleRecord()
	pending.Status = StatusPending
	assert.False(t, m.ToAPIResponse(pending, Options{}).IsActive)

	open := sampleRecord()
	open.EndDate = nil
	right = m.ToAPIResponse(open, Options{})
	assert.True(t, right.IsActive)
	assert.Nil(t, right.DaysRemaining)
}

func TestToAPIResponseList_DropsNil(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	m, _ := newTestMapper(t)

	second := sampleRecord()
	second.ID = "r-2"

	list := m.ToAPIResponseList([]*Record{sampleRecord(), nil, second}, Options{})
	require.Len(t, list, 2)
	assert.Equal(t, "r-1", list[0].ID)
	assert.Equal(t, "r-2", list[1].ID)

	assert.NotNil(t, m.ToAPIResponseList(nil, Options{}))
}

func TestFromAPICreateRequest_Defaults(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	m, _ := newTestMapper(t)

	rec, err := m.FromAPICreateRequest(&CreateRequest{
		RightType: "sync",
		Territory: " gb ",
		Language:  "en-GB",
		Contract:  &Contract{ContractNumber: "HB-7"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Exclusive)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "GB", rec.Territory)
	assert.Equal(t, "en", rec.Language)
	assert.Equal(t, "USD", *rec.Currency)
	assert.Equal(t, 0.0, *rec.RoyaltyRate)
	assert.Equal(t, 0.0, *rec.AdvanceAmount)
	assert.Nil(t, rec.MinimumGuarantee)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.Equal(t, fixedNow, rec.UpdatedAt)
	assert.JSONEq(t, `{"contractNumber":"HB-7","autoRenew":false}`, string(rec.ContractData))
	assert.Nil(t, rec.WorkflowData)
	assert.Nil(t, rec.Transactions)
}

func TestFromAPICreateRequest_Invalid(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	m, _ := newTestMapper(t)

	_, err := m.FromAPICreateRequest(nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = m.FromAPICreateRequest(&CreateRequest{RightType: "sync"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	start := fixedNow
	end := fixedNow.AddDate(0, 0, -1)

	_, err = m.FromAPICreateRequest(&CreateRequest{
		RightType: "sync", Territory: "US", StartDate: &start, EndDate: &end,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFromAPIUpdateRequest_Partial(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	m, _ := newTestMapper(t)

	changes, err := m.FromAPIUpdateRequest(&UpdateRequest{Status: ptr(StatusActive)})
	require.NoError(t, err)
	assert.Equal(t, Changes{"status": StatusActive, "updated_at": fixedNow}, changes)

	changes, err = m.FromAPIUpdateRequest(&UpdateRequest{
		Territory:  ptr("de"),
		Financials: &FinancialTerms{Currency: ptr("eur")},
		Workflow:   &Workflow{Stage: "signed"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"currency", "territory", "updated_at", "workflow_data"}, changes.Columns())
	assert.Equal(t, "DE", changes["territory"])
	assert.Equal(t, "EUR", changes["currency"])

	changes, err = m.FromAPIUpdateRequest(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"updated_at"}, changes.Columns())
}

func TestFromAPIUpdateRequest_RoundTripFromResponse(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	m, _ := newTestMapper(t)

	rec := sampleRecord()
	right := m.ToAPIResponse(rec, Options{})

	body, err := json.Marshal(right)
	require.NoError(t, err)

	var req UpdateRequest
	require.NoError(t, json.Unmarshal(body, &req))

	changes, err := m.FromAPIUpdateRequest(&req)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"end_date", "exclusive", "language", "release_id", "right_type",
		"start_date", "status", "territory", "updated_at",
	}, changes.Columns(), "only fields present in the response come back")

	assert.Equal(t, "rel-9", changes["release_id"])
	assert.Equal(t, rec.RightType, changes["right_type"])
	assert.Equal(t, rec.Exclusive, changes["exclusive"])
	assert.True(t, rec.EndDate.Equal(changes["end_date"].(time.Time)))

	for _, column := range changes.Columns() {
		assert.Contains(t, UpdatableColumns, column)
	}
}
