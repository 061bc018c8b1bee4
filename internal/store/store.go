// Package store mirrors grading outcomes into a sqlite database for
// reporting. The detection and grading pipeline never depends on it; the
// handle is constructed by the caller and passed to whatever orchestration
// wants persistence.
package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"omr-grader/internal/grade"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. Use ":memory:" for an ephemeral store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		total_questions INTEGER NOT NULL,
		has_student_id INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS answer_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		template_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (template_id) REFERENCES templates(id)
	);

	CREATE TABLE IF NOT EXISTS students (
		student_id TEXT PRIMARY KEY,
		name TEXT,
		class TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grading_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		template_id INTEGER NOT NULL,
		answer_key_id INTEGER NOT NULL,
		is_batch INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (template_id) REFERENCES templates(id),
		FOREIGN KEY (answer_key_id) REFERENCES answer_keys(id)
	);

	CREATE TABLE IF NOT EXISTS graded_sheets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		student_id TEXT,
		source_image TEXT,
		score REAL NOT NULL,
		max_points REAL NOT NULL,
		percentage REAL NOT NULL,
		correct INTEGER NOT NULL,
		incorrect INTEGER NOT NULL,
		blank INTEGER NOT NULL,
		partial INTEGER NOT NULL,
		graded_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES grading_sessions(id)
	);

	CREATE TABLE IF NOT EXISTS question_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sheet_id INTEGER NOT NULL,
		question_number INTEGER NOT NULL,
		status TEXT NOT NULL,
		points REAL NOT NULL,
		FOREIGN KEY (sheet_id) REFERENCES graded_sheets(id)
	);

	CREATE INDEX IF NOT EXISTS idx_sheets_session ON graded_sheets(session_id);
	CREATE INDEX IF NOT EXISTS idx_results_sheet ON question_results(sheet_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetOrCreateTemplate registers a template artifact by path and returns
// its row id.
func (s *Store) GetOrCreateTemplate(name, filePath string, totalQuestions int, hasStudentID bool) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM templates WHERE file_path = ?`, filePath).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := s.db.Exec(`
		INSERT INTO templates (name, file_path, total_questions, has_student_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		name, filePath, totalQuestions, boolInt(hasStudentID), time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert template: %w", err)
	}
	return res.LastInsertId()
}

// GetOrCreateAnswerKey registers an answer-key artifact by path.
func (s *Store) GetOrCreateAnswerKey(templateID int64, name, filePath string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM answer_keys WHERE file_path = ?`, filePath).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := s.db.Exec(`
		INSERT INTO answer_keys (template_id, name, file_path, created_at)
		VALUES (?, ?, ?, ?)`,
		templateID, name, filePath, time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert answer key: %w", err)
	}
	return res.LastInsertId()
}

// UpsertStudent records a student seen on a graded sheet.
func (s *Store) UpsertStudent(studentID, name, class string) error {
	_, err := s.db.Exec(`
		INSERT INTO students (student_id, name, class, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(student_id) DO UPDATE SET
			name = COALESCE(NULLIF(excluded.name, ''), students.name),
			class = COALESCE(NULLIF(excluded.class, ''), students.class)`,
		studentID, name, class, time.Now())
	return err
}

// CreateSession opens a grading session tying a template and key together.
func (s *Store) CreateSession(name string, templateID, answerKeyID int64, isBatch bool) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO grading_sessions (name, template_id, answer_key_id, is_batch, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		name, templateID, answerKeyID, boolInt(isBatch), time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return res.LastInsertId()
}

// SaveGradedSheet records one sheet's outcome plus its per-question rows.
func (s *Store) SaveGradedSheet(sessionID int64, studentID, sourceImage string, result *grade.Result) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO graded_sheets
			(session_id, student_id, source_image, score, max_points, percentage,
			 correct, incorrect, blank, partial, graded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, studentID, sourceImage,
		result.Score, result.MaxPoints, result.Percentage,
		result.Correct, result.Incorrect, result.Blank, result.Partial, time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert graded sheet: %w", err)
	}
	sheetID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	qNums := make([]int, 0, len(result.Details))
	for qNum := range result.Details {
		qNums = append(qNums, qNum)
	}
	sort.Ints(qNums)
	for _, qNum := range qNums {
		detail := result.Details[qNum]
		if _, err := tx.Exec(`
			INSERT INTO question_results (sheet_id, question_number, status, points)
			VALUES (?, ?, ?, ?)`,
			sheetID, qNum, string(detail.Status), detail.Points); err != nil {
			return 0, fmt.Errorf("insert question result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return sheetID, nil
}

// SheetSummary is one graded sheet row for reporting.
type SheetSummary struct {
	SheetID     int64
	StudentID   string
	SourceImage string
	Score       float64
	MaxPoints   float64
	Percentage  float64
	GradedAt    time.Time
}

// SessionSheets lists the graded sheets of a session, best score first.
func (s *Store) SessionSheets(sessionID int64) ([]SheetSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(student_id, ''), COALESCE(source_image, ''),
		       score, max_points, percentage, graded_at
		FROM graded_sheets
		WHERE session_id = ?
		ORDER BY percentage DESC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sheets []SheetSummary
	for rows.Next() {
		var sh SheetSummary
		if err := rows.Scan(&sh.SheetID, &sh.StudentID, &sh.SourceImage,
			&sh.Score, &sh.MaxPoints, &sh.Percentage, &sh.GradedAt); err != nil {
			return nil, err
		}
		sheets = append(sheets, sh)
	}
	return sheets, rows.Err()
}

// QuestionDifficulty aggregates how often each question was answered
// correctly across all graded sheets, hardest first.
type QuestionDifficulty struct {
	QuestionNumber int
	Attempts       int
	Correct        int
	CorrectRate    float64
}

// QuestionDifficulties returns per-question correct rates over every
// stored result.
func (s *Store) QuestionDifficulties(limit int) ([]QuestionDifficulty, error) {
	rows, err := s.db.Query(`
		SELECT question_number,
		       COUNT(*) AS attempts,
		       SUM(CASE WHEN status = 'correct' THEN 1 ELSE 0 END) AS correct
		FROM question_results
		GROUP BY question_number
		ORDER BY CAST(correct AS REAL) / COUNT(*) ASC, question_number ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QuestionDifficulty
	for rows.Next() {
		var qd QuestionDifficulty
		if err := rows.Scan(&qd.QuestionNumber, &qd.Attempts, &qd.Correct); err != nil {
			return nil, err
		}
		if qd.Attempts > 0 {
			qd.CorrectRate = float64(qd.Correct) / float64(qd.Attempts)
		}
		out = append(out, qd)
	}
	return out, rows.Err()
}

// StudentAverage returns the mean percentage across a student's sheets.
func (s *Store) StudentAverage(studentID string) (float64, int, error) {
	var avg sql.NullFloat64
	var count int
	err := s.db.QueryRow(`
		SELECT AVG(percentage), COUNT(*)
		FROM graded_sheets
		WHERE student_id = ?`, studentID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, err
	}
	return avg.Float64, count, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
