package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/postbureau/dispatch/app/store/enums"
)

// Job represents a mail dispatch work order tracked from booking through completion
type Job struct {
	ID             string          `json:"id"`
	Reference      string          `json:"reference"` // generated once at creation, immutable
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	CustomFields   StringMap       `json:"custom_fields,omitempty"`
	Status         enums.JobStatus `json:"status"`
	CollectionDate time.Time       `json:"collection_date,omitzero"`
	HandoverDate   time.Time       `json:"handover_date,omitzero"`
	ItemCount      int             `json:"item_count"`
	BagCount       int             `json:"bag_count"`
	AssignedTo     string          `json:"assigned_to,omitempty"`
	ClientName     string          `json:"client_name,omitempty"`
	SubClientID    string          `json:"sub_client_id,omitempty"`
	EManifestID    string          `json:"emanifest_id,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Files          []JobFile       `json:"files,omitempty"`
}

// JobFile is an attachment uploaded for a job
type JobFile struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Name       string    `json:"name"`
	URL        string    `json:"url,omitempty"`
	MimeType   string    `json:"mime_type,omitempty"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// jobRow is the sqlite representation of Job, timestamps as unix seconds
type jobRow struct {
	ID             string          `db:"id"`
	Reference      string          `db:"reference"`
	Title          string          `db:"title"`
	Description    string          `db:"description"`
	CustomFields   StringMap       `db:"custom_fields"`
	Status         enums.JobStatus `db:"status"`
	CollectionDate int64           `db:"collection_date"`
	HandoverDate   int64           `db:"handover_date"`
	ItemCount      int             `db:"item_count"`
	BagCount       int             `db:"bag_count"`
	AssignedTo     string          `db:"assigned_to"`
	ClientName     string          `db:"client_name"`
	SubClientID    string          `db:"sub_client_id"`
	EManifestID    string          `db:"emanifest_id"`
	CreatedBy      string          `db:"created_by"`
	CreatedAt      int64           `db:"created_at"`
	UpdatedAt      int64           `db:"updated_at"`
}

func (r jobRow) toJob() Job {
	return Job{
		ID:             r.ID,
		Reference:      r.Reference,
		Title:          r.Title,
		Description:    r.Description,
		CustomFields:   r.CustomFields,
		Status:         r.Status,
		CollectionDate: timeOrZero(r.CollectionDate),
		HandoverDate:   timeOrZero(r.HandoverDate),
		ItemCount:      r.ItemCount,
		BagCount:       r.BagCount,
		AssignedTo:     r.AssignedTo,
		ClientName:     r.ClientName,
		SubClientID:    r.SubClientID,
		EManifestID:    r.EManifestID,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      timeOrZero(r.CreatedAt),
		UpdatedAt:      timeOrZero(r.UpdatedAt),
	}
}

// ListJobs returns all jobs with their attachments, in creation order
func (s *Store) ListJobs() ([]Job, error) {
	var rows []jobRow
	err := s.db.Select(&rows, `SELECT id, reference, title, description, custom_fields, status,
		collection_date, handover_date, item_count, bag_count, assigned_to, client_name,
		sub_client_id, emanifest_id, created_by, created_at, updated_at
		FROM jobs ORDER BY created_at, reference`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	jobs := make([]Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, r.toJob())
	}

	files, err := s.listAllJobFiles()
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i].Files = files[jobs[i].ID]
	}
	return jobs, nil
}

// GetJob returns a single job by id with its attachments
func (s *Store) GetJob(id string) (Job, error) {
	var row jobRow
	err := s.db.Get(&row, `SELECT id, reference, title, description, custom_fields, status,
		collection_date, handover_date, item_count, bag_count, assigned_to, client_name,
		sub_client_id, emanifest_id, created_by, created_at, updated_at
		FROM jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to query job %s: %w", id, err)
	}

	job := row.toJob()
	files, err := s.ListJobFiles(id)
	if err != nil {
		return Job{}, err
	}
	job.Files = files
	return job, nil
}

// AddJob creates a new job, assigning id, reference and timestamps.
// The returned job is the exact record now durable.
func (s *Store) AddJob(job Job) (Job, error) {
	if strings.TrimSpace(job.Title) == "" {
		return Job{}, fmt.Errorf("job title is required")
	}
	if job.Status == "" {
		job.Status = enums.JobStatusPending
	}
	if _, err := enums.ParseJobStatus(job.Status.String()); err != nil {
		return Job{}, err
	}

	now := time.Now()
	job.ID = uuid.NewString()
	job.CreatedAt = now
	job.UpdatedAt = now

	tx, err := s.db.Beginx()
	if err != nil {
		return Job{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// reference is a per-day counter, JOB-yymmdd-nnnn. the suffix continues
	// from the highest one issued today, a deleted job never frees its reference
	day := now.Format("060102")
	var lastSuffix int
	err = tx.Get(&lastSuffix, "SELECT COALESCE(MAX(CAST(substr(reference, -4) AS INTEGER)), 0) FROM jobs WHERE reference LIKE ?",
		"JOB-"+day+"-%")
	if err != nil {
		return Job{}, fmt.Errorf("failed to get last reference: %w", err)
	}
	job.Reference = fmt.Sprintf("JOB-%s-%04d", day, lastSuffix+1)

	_, err = tx.Exec(`INSERT INTO jobs (id, reference, title, description, custom_fields, status,
		collection_date, handover_date, item_count, bag_count, assigned_to, client_name,
		sub_client_id, emanifest_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Reference, job.Title, job.Description, job.CustomFields, job.Status,
		unixOrZero(job.CollectionDate), unixOrZero(job.HandoverDate), job.ItemCount, job.BagCount,
		job.AssignedTo, job.ClientName, job.SubClientID, job.EManifestID, job.CreatedBy,
		job.CreatedAt.Unix(), job.UpdatedAt.Unix())
	if err != nil {
		return Job{}, fmt.Errorf("failed to insert job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Job{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return job, nil
}

// UpdateJob replaces the mutable fields of the job with matching id.
// Reference, creator and creation time are immutable and never touched;
// an empty status keeps the stored one, the record always has a valid
// lifecycle status. Returns ErrNotFound if the id does not exist.
func (s *Store) UpdateJob(job Job) error {
	if job.Status != "" {
		if _, err := enums.ParseJobStatus(job.Status.String()); err != nil {
			return err
		}
	}

	res, err := s.db.Exec(`UPDATE jobs SET title = ?, description = ?, custom_fields = ?,
		status = COALESCE(NULLIF(?, ''), status),
		collection_date = ?, handover_date = ?, item_count = ?, bag_count = ?, assigned_to = ?,
		client_name = ?, sub_client_id = ?, emanifest_id = ?, updated_at = ?
		WHERE id = ?`,
		job.Title, job.Description, job.CustomFields, job.Status,
		unixOrZero(job.CollectionDate), unixOrZero(job.HandoverDate), job.ItemCount, job.BagCount,
		job.AssignedTo, job.ClientName, job.SubClientID, job.EManifestID,
		time.Now().Unix(), job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteJob removes a job and its attachments, no-op if absent
func (s *Store) DeleteJob(id string) error {
	if _, err := s.db.Exec("DELETE FROM jobs WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

// AddJobFile attaches a file record to an existing job
func (s *Store) AddJobFile(jobID string, file JobFile) (JobFile, error) {
	var exists int
	if err := s.db.Get(&exists, "SELECT COUNT(*) FROM jobs WHERE id = ?", jobID); err != nil {
		return JobFile{}, fmt.Errorf("failed to check job %s: %w", jobID, err)
	}
	if exists == 0 {
		return JobFile{}, ErrNotFound
	}

	file.ID = uuid.NewString()
	file.JobID = jobID
	file.UploadedAt = time.Now()

	_, err := s.db.Exec(`INSERT INTO job_files (id, job_id, name, url, mime_type, uploaded_by, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		file.ID, file.JobID, file.Name, file.URL, file.MimeType, file.UploadedBy, file.UploadedAt.Unix())
	if err != nil {
		return JobFile{}, fmt.Errorf("failed to insert job file: %w", err)
	}
	return file, nil
}

// ListJobFiles returns attachments for a job in upload order
func (s *Store) ListJobFiles(jobID string) ([]JobFile, error) {
	rows, err := s.db.Query(`SELECT id, job_id, name, url, mime_type, uploaded_by, uploaded_at
		FROM job_files WHERE job_id = ? ORDER BY uploaded_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job files: %w", err)
	}
	defer rows.Close()
	return scanJobFiles(rows)
}

// listAllJobFiles loads every attachment grouped by job id, avoids per-job queries in ListJobs
func (s *Store) listAllJobFiles() (map[string][]JobFile, error) {
	rows, err := s.db.Query(`SELECT id, job_id, name, url, mime_type, uploaded_by, uploaded_at
		FROM job_files ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query job files: %w", err)
	}
	defer rows.Close()

	files, err := scanJobFiles(rows)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]JobFile)
	for _, f := range files {
		grouped[f.JobID] = append(grouped[f.JobID], f)
	}
	return grouped, nil
}

func scanJobFiles(rows *sql.Rows) ([]JobFile, error) {
	var files []JobFile
	for rows.Next() {
		var f JobFile
		var uploadedAt int64
		if err := rows.Scan(&f.ID, &f.JobID, &f.Name, &f.URL, &f.MimeType, &f.UploadedBy, &uploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job file row: %w", err)
		}
		f.UploadedAt = timeOrZero(uploadedAt)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job file rows: %w", err)
	}
	return files, nil
}

// SearchJobs filters jobs by case-insensitive substring match against
// reference, title and description. Custom field values are deliberately
// excluded from matching.
func SearchJobs(jobs []Job, term string) []Job {
	if term == "" {
		return jobs
	}

	needle := strings.ToLower(term)
	filtered := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if strings.Contains(strings.ToLower(job.Reference), needle) ||
			strings.Contains(strings.ToLower(job.Title), needle) ||
			strings.Contains(strings.ToLower(job.Description), needle) {
			filtered = append(filtered, job)
		}
	}
	return filtered
}

// FilterJobsBySubClients keeps jobs attributed to one of the allowed
// sub-clients. Used for restricted user-role accounts; an empty allowed
// list means no restriction.
func FilterJobsBySubClients(jobs []Job, allowed []string) []Job {
	if len(allowed) == 0 {
		return jobs
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	filtered := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if allowedSet[job.SubClientID] {
			filtered = append(filtered, job)
		}
	}
	return filtered
}

// job sort keys
const (
	SortByTitle      = "title"
	SortByReference  = "reference"
	SortByClient     = "client"
	SortByCollection = "collection_date"
	SortByStatus     = "status"
	SortByEManifest  = "emanifest"
)

// SortJobs orders jobs by the given key, ascending unless desc is set.
// The sort is stable, jobs with equal keys keep their original relative
// order. Missing values compare as empty strings.
func SortJobs(jobs []Job, key string, desc bool) {
	keyFn := func(j Job) string {
		switch key {
		case SortByTitle:
			return strings.ToLower(j.Title)
		case SortByReference:
			return strings.ToLower(j.Reference)
		case SortByClient:
			return strings.ToLower(j.ClientName)
		case SortByCollection:
			if j.CollectionDate.IsZero() {
				return ""
			}
			return j.CollectionDate.UTC().Format(time.RFC3339)
		case SortByStatus:
			return j.Status.String()
		case SortByEManifest:
			return strings.ToLower(j.EManifestID)
		default:
			return strings.ToLower(j.Reference)
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		ki, kj := keyFn(jobs[i]), keyFn(jobs[j])
		if desc {
			return ki > kj
		}
		return ki < kj
	})
}
