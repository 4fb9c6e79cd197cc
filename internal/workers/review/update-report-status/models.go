package updatereportstatus

type Input struct {
	ReportID   int64  `json:"reportId"`
	Status     string `json:"status"`
	ReviewerID string `json:"reviewerId"`
	Comment    string `json:"comment,omitempty"`
}

type Output struct {
	ReportID       int64  `json:"reportId"`
	PreviousStatus string `json:"previousStatus"`
	ReportStatus   string `json:"reportStatus"`
	UpdatedAt      string `json:"updatedAt"` // ISO 8601
}
