package model

import "time"

// ExamExport is the top-level JSON structure for submission export.
type ExamExport struct {
	ExamID      string             `json:"exam_id"`
	Subject     string             `json:"subject"`
	Date        string             `json:"date"`
	GeneratedAt time.Time          `json:"generated_at"`
	Submissions []SubmissionExport `json:"submissions"`
}

// SubmissionExport holds one submission's results for export.
type SubmissionExport struct {
	ID             string         `json:"id"`
	StudentName    string         `json:"student_name"`
	StudentID      string         `json:"student_id"`
	CreatedAt      time.Time      `json:"created_at"`
	Authoritative  ScoreSummary   `json:"authoritative"`
	Advisory       ScoreSummary   `json:"advisory"`
	AdvisoryStatus AdvisoryStatus `json:"advisory_status"`
	Items          []ItemExport   `json:"items"`
}

// ItemExport joins one grading item with both of its verdicts.
type ItemExport struct {
	Ordinal       int      `json:"ordinal"`
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"correct_answer"`
	UserAnswer    string   `json:"user_answer"`
	StrictCorrect bool     `json:"strict_correct"`
	Category      Category `json:"category,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
	Score         int      `json:"score"`
	Source        string   `json:"source,omitempty"`
}
