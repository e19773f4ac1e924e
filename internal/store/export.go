package store

import (
	"fmt"

	"github.com/abenov/zanexam/internal/model"
)

// ExportAllSubmissions builds export-ready results for every stored
// submission, joining each item with its authoritative verdict and any
// advisory judgment.
func (s *Store) ExportAllSubmissions() ([]model.SubmissionExport, error) {
	subs, err := s.ListSubmissions()
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	var exports []model.SubmissionExport
	for _, summary := range subs {
		sub, err := s.GetSubmission(summary.ID)
		if err != nil {
			return nil, fmt.Errorf("get submission %s: %w", summary.ID, err)
		}

		byOrdinal := make(map[int]model.Judgment, len(sub.Judgments))
		for _, j := range sub.Judgments {
			byOrdinal[j.Ordinal] = j
		}

		var items []model.ItemExport
		for i, item := range sub.Items {
			ie := model.ItemExport{
				Ordinal:       item.Ordinal,
				Question:      item.Question,
				CorrectAnswer: item.CorrectAnswer,
				UserAnswer:    item.UserAnswer,
				StrictCorrect: sub.StrictCorrect[i],
			}
			if j, ok := byOrdinal[item.Ordinal]; ok {
				ie.Category = j.Category
				ie.Explanation = j.Explanation
				ie.Score = j.Score
				ie.Source = string(j.Source)
			}
			items = append(items, ie)
		}

		exports = append(exports, model.SubmissionExport{
			ID:             sub.ID,
			StudentName:    sub.Student.Name,
			StudentID:      sub.Student.ExternalID,
			CreatedAt:      sub.CreatedAt,
			Authoritative:  sub.Authoritative,
			Advisory:       model.Aggregate(sub.Judgments),
			AdvisoryStatus: sub.AdvisoryStatus,
			Items:          items,
		})
	}

	return exports, nil
}
