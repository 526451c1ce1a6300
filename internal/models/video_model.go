package models

import "time"

type Video struct {
	ID           int64     `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	FilePath     string    `db:"file_path" json:"file_path"`
	ContentType  string    `db:"content_type" json:"content_type"`
	FileSize     int64     `db:"file_size" json:"file_size"`
	UploadedByID *int64    `db:"uploaded_by_id" json:"uploaded_by_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
