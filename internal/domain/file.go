package domain

import "time"

// File is an uploaded asset (header image, board attachment, faculty photo).
// The object itself lives in S3 under Object.
type File struct {
	FileID              string    `json:"id" dynamodbav:"file_id"`
	Object              string    `json:"object" dynamodbav:"object"`
	Size                int64     `json:"size" dynamodbav:"size"`
	Type                string    `json:"type" dynamodbav:"type"`
	Name                string    `json:"name" dynamodbav:"name"`
	Hash                string    `json:"hash" dynamodbav:"hash"`
	IsPrivate           bool      `json:"is_private" dynamodbav:"is_private"`
	UploadedByAccountID string    `json:"uploaded_by" dynamodbav:"uploaded_by_account_id"`
	Enable              bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt           time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt           time.Time `json:"updated" dynamodbav:"updated_at"`
}
