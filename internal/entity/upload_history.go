package entity

import "time"

// UploadHistory is the audit record of one confirmed import. It is never updated.
type UploadHistory struct {
	ID                int64     `json:"id"`
	FileName          string    `json:"file_name"`
	PhoneNumber       *string   `json:"phone_number,omitempty"`
	TotalRecords      int       `json:"total_records"`
	SuccessfulRecords int       `json:"successful_records"`
	FailedRecords     int       `json:"failed_records"`
	DuplicateRecords  int       `json:"duplicate_records"`
	Errors            *string   `json:"errors,omitempty"`
	ContentHash       []byte    `json:"content_hash,omitempty"`
	UploadDate        time.Time `json:"upload_date"`
}
