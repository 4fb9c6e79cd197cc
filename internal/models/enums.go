// internal/models/enums.go
package models

type LeadType string

const (
	LeadTypeClient    LeadType = "CLIENT_LEAD"
	LeadTypeTrueBuddy LeadType = "TRUEBUDDY_LEAD"
)

func (l LeadType) Valid() bool {
	return l == LeadTypeClient || l == LeadTypeTrueBuddy
}

// LeadTypes lists every supported lead type in display order.
func LeadTypes() []LeadType {
	return []LeadType{LeadTypeClient, LeadTypeTrueBuddy}
}

type ReportStatus string

const (
	ReportStatusDraft       ReportStatus = "DRAFT"
	ReportStatusInProgress  ReportStatus = "IN_PROGRESS"
	ReportStatusSubmitted   ReportStatus = "SUBMITTED"
	ReportStatusUnderReview ReportStatus = "UNDER_REVIEW"
	ReportStatusApproved    ReportStatus = "APPROVED"
	ReportStatusRejected    ReportStatus = "REJECTED"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusDraft, ReportStatusInProgress, ReportStatusSubmitted,
		ReportStatusUnderReview, ReportStatusApproved, ReportStatusRejected:
		return true
	}
	return false
}

// Editable reports whether the wizard may still save steps.
func (s ReportStatus) Editable() bool {
	return s == ReportStatusDraft || s == ReportStatusInProgress
}

// statusTransitions lists the externally driven moves a reviewer may make.
// DRAFT and IN_PROGRESS only leave through the wizard's final submission.
var statusTransitions = map[ReportStatus][]ReportStatus{
	ReportStatusSubmitted:   {ReportStatusUnderReview, ReportStatusRejected},
	ReportStatusUnderReview: {ReportStatusApproved, ReportStatusRejected, ReportStatusInProgress},
	ReportStatusRejected:    {ReportStatusInProgress},
}

// CanTransition reports whether a review decision may move from one status to another.
func CanTransition(from, to ReportStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Enumerations used by step schemas. Values are the wire strings.
var (
	VerificationStatuses  = []string{"VERIFIED", "PARTIALLY_VERIFIED", "UNVERIFIED", "PENDING"}
	RiskLevels            = []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}
	ScopesOfOperation     = []string{"LOCAL", "STATE", "NATIONAL", "INTERNATIONAL"}
	IntelligenceNatures   = []string{"HUMINT", "OSINT", "DOCUMENTARY", "TRADE_INFORMANT", "MIXED"}
	SourceReliabilities   = []string{"RELIABLE", "USUALLY_RELIABLE", "FAIRLY_RELIABLE", "NOT_USUALLY_RELIABLE", "UNRELIABLE", "CANNOT_BE_JUDGED"}
	InformationAccuracies = []string{"CONFIRMED", "PROBABLY_TRUE", "POSSIBLY_TRUE", "DOUBTFUL", "IMPROBABLE", "CANNOT_BE_JUDGED"}
	SupplyChainRoles      = []string{"MANUFACTURER", "IMPORTER", "DISTRIBUTOR", "WHOLESALER", "RETAILER", "ONLINE_SELLER", "UNKNOWN"}
	InfringementTypes     = []string{"COUNTERFEIT", "LOOKALIKE", "TRADEMARK_MISUSE", "COPYRIGHT", "PATENT", "GREY_MARKET", "OTHER"}
	RecommendedActions    = []string{"RAID", "TEST_PURCHASE", "MARKET_SURVEY", "CEASE_AND_DESIST", "FURTHER_INVESTIGATION", "NO_ACTION"}
	LeadSources           = []string{"FIELD_INFORMANT", "MARKET_VISIT", "ONLINE_MONITORING", "TRADE_CONTACT", "ANONYMOUS_TIP", "OTHER"}
	ProductCategories     = []string{"APPAREL", "FMCG", "ELECTRONICS", "AUTOMOTIVE", "PHARMA", "AGROCHEMICAL", "LUXURY", "OTHER"}
)
