package store

import (
	"database/sql"
	"fmt"

	"github.com/abenov/zanexam/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// stable across the pool.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		student_name TEXT NOT NULL DEFAULT '',
		student_external_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		advisory_status TEXT NOT NULL DEFAULT 'pending',
		correct INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		percentage INTEGER NOT NULL DEFAULT 0,
		is_passing INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS grading_items (
		submission_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		question TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		user_answer TEXT NOT NULL DEFAULT '',
		strict_correct INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (submission_id, ordinal),
		FOREIGN KEY (submission_id) REFERENCES submissions(id)
	);

	CREATE TABLE IF NOT EXISTS judgments (
		submission_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		category TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		is_correct INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT 'fallback',
		PRIMARY KEY (submission_id, ordinal),
		FOREIGN KEY (submission_id) REFERENCES submissions(id)
	);

	CREATE TABLE IF NOT EXISTS grader_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSubmission stores a submission with its items and authoritative
// verdicts in one transaction.
func (s *Store) CreateSubmission(sub model.Submission) error {
	if len(sub.StrictCorrect) != len(sub.Items) {
		return fmt.Errorf("strict verdicts (%d) do not match items (%d)",
			len(sub.StrictCorrect), len(sub.Items))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO submissions (id, student_name, student_external_id, created_at,
			advisory_status, correct, total, percentage, is_passing)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Student.Name, sub.Student.ExternalID, sub.CreatedAt,
		sub.AdvisoryStatus, sub.Authoritative.Correct, sub.Authoritative.Total,
		sub.Authoritative.Percentage, sub.Authoritative.IsPassing,
	)
	if err != nil {
		return err
	}

	for i, item := range sub.Items {
		_, err := tx.Exec(
			`INSERT INTO grading_items (submission_id, ordinal, question, correct_answer, user_answer, strict_correct)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sub.ID, item.Ordinal, item.Question, item.CorrectAnswer, item.UserAnswer, sub.StrictCorrect[i],
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetSubmission returns a submission with its items and any advisory
// judgments recorded so far. Returns nil when the id is unknown.
func (s *Store) GetSubmission(id string) (*model.Submission, error) {
	var sub model.Submission
	err := s.db.QueryRow(
		`SELECT id, student_name, student_external_id, created_at, advisory_status,
			correct, total, percentage, is_passing
		 FROM submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.Student.Name, &sub.Student.ExternalID, &sub.CreatedAt,
		&sub.AdvisoryStatus, &sub.Authoritative.Correct, &sub.Authoritative.Total,
		&sub.Authoritative.Percentage, &sub.Authoritative.IsPassing)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT ordinal, question, correct_answer, user_answer, strict_correct
		 FROM grading_items WHERE submission_id = ? ORDER BY ordinal`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item model.GradingItem
		var strict bool
		if err := rows.Scan(&item.Ordinal, &item.Question, &item.CorrectAnswer, &item.UserAnswer, &strict); err != nil {
			return nil, err
		}
		sub.Items = append(sub.Items, item)
		sub.StrictCorrect = append(sub.StrictCorrect, strict)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sub.Judgments, err = s.getJudgments(id)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) getJudgments(submissionID string) ([]model.Judgment, error) {
	rows, err := s.db.Query(
		`SELECT ordinal, category, explanation, score, source
		 FROM judgments WHERE submission_id = ? ORDER BY ordinal`, submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var judgments []model.Judgment
	for rows.Next() {
		var (
			ordinal     int
			category    model.Category
			explanation string
			score       int
			source      model.JudgmentSource
		)
		if err := rows.Scan(&ordinal, &category, &explanation, &score, &source); err != nil {
			return nil, err
		}
		judgments = append(judgments, model.NewJudgment(ordinal, category, explanation, score, source))
	}
	return judgments, rows.Err()
}

// UpsertJudgments records advisory judgments, replacing any earlier judgment
// for the same item so a successful retry overwrites its fallback entry.
func (s *Store) UpsertJudgments(submissionID string, judgments []model.Judgment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, j := range judgments {
		_, err := tx.Exec(
			`INSERT INTO judgments (submission_id, ordinal, category, explanation, score, is_correct, source)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(submission_id, ordinal) DO UPDATE SET
				category = excluded.category, explanation = excluded.explanation,
				score = excluded.score, is_correct = excluded.is_correct, source = excluded.source`,
			submissionID, j.Ordinal, j.Category, j.Explanation, j.Score, j.IsCorrect, j.Source,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetAdvisoryStatus updates the background-grading status of a submission.
func (s *Store) SetAdvisoryStatus(submissionID string, status model.AdvisoryStatus) error {
	_, err := s.db.Exec(
		`UPDATE submissions SET advisory_status = ? WHERE id = ?`, status, submissionID,
	)
	return err
}

// ListSubmissions returns all submissions, newest first, without items or
// judgments.
func (s *Store) ListSubmissions() ([]model.Submission, error) {
	rows, err := s.db.Query(
		`SELECT id, student_name, student_external_id, created_at, advisory_status,
			correct, total, percentage, is_passing
		 FROM submissions ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.Student.Name, &sub.Student.ExternalID, &sub.CreatedAt,
			&sub.AdvisoryStatus, &sub.Authoritative.Correct, &sub.Authoritative.Total,
			&sub.Authoritative.Percentage, &sub.Authoritative.IsPassing); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SubmissionCount returns the number of stored submissions.
func (s *Store) SubmissionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM submissions`).Scan(&count)
	return count, err
}
