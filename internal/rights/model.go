// Package rights maps licensing rights between their stored form and the API.
package rights

import (
	"context"
	"errors"
	"time"
)

// Right statuses.
const (
	StatusPending    = "pending"
	StatusActive     = "active"
	StatusExpired    = "expired"
	StatusTerminated = "terminated"
)

const defaultCurrency = "USD"

var (
	// ErrNotFound is returned by stores when a right does not exist.
	ErrNotFound = errors.New("right not found")
	// ErrInvalidRequest is returned when a create request lacks required fields.
	ErrInvalidRequest = errors.New("invalid rights request")
)

type (
	// Record is a row of the rights table. Nullable columns are pointers and
	// JSONB columns hold raw bytes until mapped.
	Record struct {
		ID               string
		ReleaseID        *string
		BookID           *string
		RightType        string
		Territory        string
		Language         string
		Exclusive        bool
		Status           string
		StartDate        *time.Time
		EndDate          *time.Time
		LicenseeName     *string
		LicenseeEmail    *string
		LicenseeCompany  *string
		RoyaltyRate      *float64
		AdvanceAmount    *float64
		MinimumGuarantee *float64
		Currency         *string
		RevenueGenerated *float64
		Notes            *string
		CreatedBy        *string
		ContractData     []byte
		ComplianceData   []byte
		WorkflowData     []byte
		PublicationData  []byte
		Transactions     []byte
		CreatedAt        time.Time
		UpdatedAt        time.Time
	}

	// Right is the API representation of a licensing right.
	Right struct {
		ID            string     `json:"id"`
		ReleaseID     *string    `json:"releaseId"`
		BookID        *string    `json:"bookId"`
		RightType     string     `json:"rightType"`
		Territory     string     `json:"territory"`
		Language      string     `json:"language"`
		Exclusive     bool       `json:"exclusive"`
		Status        string     `json:"status"`
		StartDate     *time.Time `json:"startDate"`
		EndDate       *time.Time `json:"endDate"`
		Notes         *string    `json:"notes"`
		CreatedBy     *string    `json:"createdBy"`
		CreatedAt     time.Time  `json:"createdAt"`
		UpdatedAt     time.Time  `json:"updatedAt"`
		IsActive      bool       `json:"isActive"`
		DaysRemaining *int       `json:"daysRemaining"`

		Financials      *Financials      `json:"financials,omitempty"`
		Contract        *Contract        `json:"contract,omitempty"`
		Compliance      *Compliance      `json:"compliance,omitempty"`
		TerritorialInfo *TerritorialInfo `json:"territorialInfo,omitempty"`
		Workflow        *Workflow        `json:"workflow,omitempty"`
		Publication     *Publication     `json:"publication,omitempty"`
		Licensee        *Licensee        `json:"licensee,omitempty"`
		Transactions    []Transaction    `json:"transactions,omitempty"`
	}

	// Financials are the money terms of a right. Missing amounts read as zero.
	Financials struct {
		RoyaltyRate      float64  `json:"royaltyRate"`
		AdvanceAmount    float64  `json:"advanceAmount"`
		MinimumGuarantee *float64 `json:"minimumGuarantee"`
		Currency         string   `json:"currency"`
		RevenueGenerated float64  `json:"revenueGenerated"`
		RoyaltiesEarned  float64  `json:"royaltiesEarned"`
		AdvanceRecouped  bool     `json:"advanceRecouped"`
	}

	// FinancialTerms is the writable subset of Financials.
	FinancialTerms struct {
		RoyaltyRate      *float64 `json:"royaltyRate"`
		AdvanceAmount    *float64 `json:"advanceAmount"`
		MinimumGuarantee *float64 `json:"minimumGuarantee"`
		Currency         *string  `json:"currency"`
		RevenueGenerated *float64 `json:"revenueGenerated"`
	}

	// Licensee identifies the party licensing the right.
	Licensee struct {
		Name    *string `json:"name"`
		Email   *string `json:"email"`
		Company *string `json:"company"`
	}

	Contract struct {
		ContractNumber   string     `json:"contractNumber,omitempty"`
		SignedAt         *time.Time `json:"signedAt,omitempty"`
		SignedBy         string     `json:"signedBy,omitempty"`
		DocumentURL      string     `json:"documentUrl,omitempty"`
		Terms            string     `json:"terms,omitempty"`
		AutoRenew        bool       `json:"autoRenew"`
		NoticePeriodDays int        `json:"noticePeriodDays,omitempty"`
	}

	Compliance struct {
		Status            string            `json:"status,omitempty"`
		Checks            []ComplianceCheck `json:"checks,omitempty"`
		RestrictedContent bool              `json:"restrictedContent"`
		Notes             string            `json:"notes,omitempty"`
	}

	ComplianceCheck struct {
		Name      string     `json:"name"`
		Passed    bool       `json:"passed"`
		CheckedAt *time.Time `json:"checkedAt,omitempty"`
	}

	Workflow struct {
		Stage      string          `json:"stage,omitempty"`
		AssignedTo string          `json:"assignedTo,omitempty"`
		ApprovedBy string          `json:"approvedBy,omitempty"`
		ApprovedAt *time.Time      `json:"approvedAt,omitempty"`
		History    []WorkflowEvent `json:"history,omitempty"`
	}

	WorkflowEvent struct {
		Stage string    `json:"stage"`
		Actor string    `json:"actor,omitempty"`
		At    time.Time `json:"at"`
	}

	Publication struct {
		Format      string     `json:"format,omitempty"`
		ISBN        string     `json:"isbn,omitempty"`
		Publisher   string     `json:"publisher,omitempty"`
		PublishedAt *time.Time `json:"publishedAt,omitempty"`
		Editions    []string   `json:"editions,omitempty"`
	}

	Transaction struct {
		ID         string    `json:"id"`
		Type       string    `json:"type"`
		Amount     float64   `json:"amount"`
		Currency   string    `json:"currency"`
		OccurredAt time.Time `json:"occurredAt"`
		Reference  string    `json:"reference,omitempty"`
	}

	// TerritorialInfo resolves the territory and language codes of a right.
	TerritorialInfo struct {
		Territory TerritoryInfo `json:"territory"`
		Language  LanguageInfo  `json:"language"`
	}

	// Options select which sub-objects ToAPIResponse includes.
	Options struct {
		IncludeFinancials      bool
		IncludeContract        bool
		IncludeCompliance      bool
		IncludeTerritorialInfo bool
		IncludeWorkflow        bool
		IncludePublication     bool
		IncludeLicensee        bool
		IncludeTransactions    bool
	}

	// CreateRequest is the body of POST /api/v1/rights.
	CreateRequest struct {
		ReleaseID    *string         `json:"releaseId"`
		BookID       *string         `json:"bookId"`
		RightType    string          `json:"rightType"`
		Territory    string          `json:"territory"`
		Language     string          `json:"language"`
		Exclusive    *bool           `json:"exclusive"`
		Status       string          `json:"status"`
		StartDate    *time.Time      `json:"startDate"`
		EndDate      *time.Time      `json:"endDate"`
		Notes        *string         `json:"notes"`
		CreatedBy    *string         `json:"createdBy"`
		Financials   *FinancialTerms `json:"financials"`
		Licensee     *Licensee       `json:"licensee"`
		Contract     *Contract       `json:"contract"`
		Compliance   *Compliance     `json:"compliance"`
		Workflow     *Workflow       `json:"workflow"`
		Publication  *Publication    `json:"publication"`
		Transactions []Transaction   `json:"transactions"`
	}

	// UpdateRequest is the body of PATCH /api/v1/rights/{id}. Nil fields are left
	// unchanged; JSON null cannot clear a column.
	UpdateRequest struct {
		ReleaseID    *string         `json:"releaseId"`
		BookID       *string         `json:"bookId"`
		RightType    *string         `json:"rightType"`
		Territory    *string         `json:"territory"`
		Language     *string         `json:"language"`
		Exclusive    *bool           `json:"exclusive"`
		Status       *string         `json:"status"`
		StartDate    *time.Time      `json:"startDate"`
		EndDate      *time.Time      `json:"endDate"`
		Notes        *string         `json:"notes"`
		Financials   *FinancialTerms `json:"financials"`
		Licensee     *Licensee       `json:"licensee"`
		Contract     *Contract       `json:"contract"`
		Compliance   *Compliance     `json:"compliance"`
		Workflow     *Workflow       `json:"workflow"`
		Publication  *Publication    `json:"publication"`
		Transactions []Transaction   `json:"transactions"`
	}

	// Changes maps column names to new values for a partial update.
	Changes map[string]any

	// Filter narrows List results. Zero fields do not filter.
	Filter struct {
		IDs       []string
		ReleaseID string
		BookID    string
		RightType string
		Territory string
		Status    string
		Limit     int
		Offset    int
	}

	// Store persists rights records.
	Store interface {
		Create(ctx context.Context, record *Record) error
		Get(ctx context.Context, id string) (*Record, error)
		List(ctx context.Context, filter Filter) ([]*Record, error)
		Update(ctx context.Context, id string, changes Changes) (*Record, error)
		Delete(ctx context.Context, id string) error
	}
)

// Columns returns the changed column names in sorted order.
func (c Changes) Columns() []string {
	return sortedKeys(c)
}
