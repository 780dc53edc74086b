package document

import (
	"strings"

	"github.com/fundwit/go-commons/types"
)

type Status string

const (
	StatusDraft    Status = "Draft"
	StatusReview   Status = "Review"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
	StatusExecuted Status = "Executed"
)

type Document struct {
	ID          types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Title       string   `json:"title"`
	Department  string   `json:"department" gorm:"index:idx_document_department"`
	DocType     string   `json:"docType" gorm:"index:idx_document_type"`
	Sensitivity string   `json:"sensitivity"`
	Tags        string   `json:"tags"`
	Status      Status   `json:"status" gorm:"index:idx_document_status"`

	RetentionPolicy string           `json:"retentionPolicy"`
	RetentionYears  int              `json:"retentionYears"`
	RetentionExpiry *types.Timestamp `json:"retentionExpiry" sql:"type:DATETIME(6)"`

	CreatorID  types.ID        `json:"creatorId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

// Version is one uploaded revision of a document, the file itself lives outside this service.
type Version struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DocumentID types.ID `json:"documentId" gorm:"unique_index:uni_document_version" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Version    int      `json:"version" gorm:"unique_index:uni_document_version"`
	FileRef    string   `json:"fileRef"`
	Note       string   `json:"note"`

	CreatorID  types.ID        `json:"creatorId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (v *Version) TableName() string {
	return "document_versions"
}

// Attributes is the snapshot workflow triggers are evaluated against.
type Attributes struct {
	DocType     string `json:"docType"`
	Department  string `json:"department"`
	Sensitivity string `json:"sensitivity"`
	Status      Status `json:"status"`
}

func (d *Document) Attributes() Attributes {
	return Attributes{DocType: d.DocType, Department: d.Department, Sensitivity: d.Sensitivity, Status: d.Status}
}

func (d *Document) TagList() []string {
	if d.Tags == "" {
		return []string{}
	}
	return strings.Split(d.Tags, ",")
}

type DocumentCreation struct {
	Title           string   `json:"title" binding:"required"`
	Department      string   `json:"department" binding:"required"`
	DocType         string   `json:"docType" binding:"required"`
	Sensitivity     string   `json:"sensitivity"`
	Tags            []string `json:"tags"`
	RetentionPolicy string   `json:"retentionPolicy"`
	RetentionYears  int      `json:"retentionYears" binding:"min=0,max=50"`

	FileRef string `json:"fileRef"`
	Note    string `json:"note"`
}

type VersionCreation struct {
	FileRef string `json:"fileRef" binding:"required"`
	Note    string `json:"note"`
}

type DocumentQuery struct {
	Q           string `form:"q"`
	Department  string `form:"department"`
	DocType     string `form:"docType"`
	Sensitivity string `form:"sensitivity"`
	Status      string `form:"status"`
}
