package models

type Document struct {
	ID          string `db:"id" json:"id"`
	Folder      string `db:"folder" json:"folder"`
	FileName    string `db:"file_name" json:"fileName"`
	ContentType string `db:"content_type" json:"contentType"`
	Size        int64  `db:"size" json:"size"`
	BlobKey     string `db:"blob_key" json:"storagePath"`
	UploadedBy  string `db:"uploaded_by" json:"uploadedBy"`
	CreatedAt   string `db:"created_at" json:"createdAt"`
}
