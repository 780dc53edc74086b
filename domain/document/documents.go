package document

import (
	"docflow/bizerror"
	"docflow/config"
	"docflow/event"
	"docflow/idgen"
	"docflow/persistence"
	"docflow/session"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateDocumentFunc = CreateDocument
	DetailDocumentFunc = DetailDocument
	QueryDocumentsFunc = QueryDocuments
	AddVersionFunc     = AddVersion
	ListVersionsFunc   = ListVersions
	MarkExecutedFunc   = MarkExecuted
)

// CreateDocument registers a draft document. When a file reference is given it becomes version 1.
func CreateDocument(c *DocumentCreation, catalog *config.Catalog, s *session.Session) (*Document, error) {
	doc, err := buildDocument(c, catalog, s)
	if err != nil {
		return nil, err
	}

	var events []*event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		ev, err := event.CreateEvent(event.EntityDocument, doc.ID, event.ActionDocumentCreated,
			event.Details{"title": doc.Title, "docType": doc.DocType, "department": doc.Department}, &s.Identity, doc.CreateTime, tx)
		if err != nil {
			return err
		}
		events = append(events, ev)

		if strings.TrimSpace(c.FileRef) != "" {
			_, ev, err := addVersion(tx, doc.ID, &VersionCreation{FileRef: c.FileRef, Note: c.Note}, s)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(events)
	return doc, nil
}

func buildDocument(c *DocumentCreation, catalog *config.Catalog, s *session.Session) (*Document, error) {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("title is required")}
	}
	department, err := canonical("department", c.Department, catalog.Departments, true)
	if err != nil {
		return nil, err
	}
	docType, err := canonical("document type", c.DocType, catalog.DocumentTypes, true)
	if err != nil {
		return nil, err
	}
	sensitivity, err := canonical("sensitivity", c.Sensitivity, catalog.Sensitivities, false)
	if err != nil {
		return nil, err
	}

	now := types.CurrentTimestamp()
	doc := &Document{
		ID:          idgen.NextID(idWorker),
		Title:       title,
		Department:  department,
		DocType:     docType,
		Sensitivity: sensitivity,
		Tags:        joinTags(c.Tags),
		Status:      StatusDraft,
		CreatorID:   s.Identity.ID,
		CreateTime:  now,
	}

	if c.RetentionPolicy != "" {
		policy, found := catalog.FindRetentionPolicy(c.RetentionPolicy)
		if !found {
			return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("unknown retention policy '%s'", c.RetentionPolicy)}
		}
		if policy.Years == customRetentionYears && c.RetentionYears <= 0 {
			return nil, &bizerror.ErrBadParam{Cause: errors.New("custom retention requires a number of years")}
		}
		doc.RetentionPolicy = policy.Name
		if policy.Years == customRetentionYears {
			doc.RetentionYears = c.RetentionYears
		}
		if expiry := ComputeRetentionExpiry(catalog, policy.Name, now.Time(), c.RetentionYears); expiry != nil {
			ts := types.Timestamp(*expiry)
			doc.RetentionExpiry = &ts
		}
	}
	return doc, nil
}

// canonical returns the vocabulary spelling of value, an empty vocabulary accepts anything.
func canonical(dimension, value string, vocabulary []string, required bool) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			return "", &bizerror.ErrBadParam{Cause: fmt.Errorf("%s is required", dimension)}
		}
		return "", nil
	}
	if len(vocabulary) == 0 {
		return value, nil
	}
	for _, v := range vocabulary {
		if strings.EqualFold(v, value) {
			return v, nil
		}
	}
	return "", &bizerror.ErrBadParam{Cause: fmt.Errorf("unknown %s '%s'", dimension, value)}
}

func joinTags(tags []string) string {
	cleaned := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(strings.ReplaceAll(t, ",", " "))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, ",")
}

func DetailDocument(id types.ID, s *session.Session) (*Document, error) {
	return LoadDocument(persistence.ActiveDataSourceManager.GormDB(s.Context), id)
}

func LoadDocument(db *gorm.DB, id types.ID) (*Document, error) {
	doc := Document{}
	if err := db.Where(&Document{ID: id}).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// QueryDocuments filters documents, newest first. q matches title, tags, department and type.
func QueryDocuments(q *DocumentQuery, s *session.Session) ([]Document, error) {
	documents := []Document{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if text := strings.ToLower(strings.TrimSpace(q.Q)); text != "" {
		like := "%" + text + "%"
		db = db.Where("LOWER(title) LIKE ? OR LOWER(tags) LIKE ? OR LOWER(department) LIKE ? OR LOWER(doc_type) LIKE ?",
			like, like, like, like)
	}
	if q.Department != "" {
		db = db.Where("LOWER(department) = LOWER(?)", q.Department)
	}
	if q.DocType != "" {
		db = db.Where("LOWER(doc_type) = LOWER(?)", q.DocType)
	}
	if q.Sensitivity != "" {
		db = db.Where("LOWER(sensitivity) = LOWER(?)", q.Sensitivity)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if err := db.Order("id DESC").Find(&documents).Error; err != nil {
		return nil, err
	}
	return documents, nil
}

func AddVersion(documentID types.ID, c *VersionCreation, s *session.Session) (*Version, error) {
	var v *Version
	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := LoadDocument(tx, documentID); err != nil {
			return err
		}
		var err error
		v, ev, err = addVersion(tx, documentID, c, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.InvokeHandlersFunc(ev)
	return v, nil
}

// the unique (document_id, version) index rejects a concurrent writer of the same number
func addVersion(tx *gorm.DB, documentID types.ID, c *VersionCreation, s *session.Session) (*Version, *event.EventRecord, error) {
	if strings.TrimSpace(c.FileRef) == "" {
		return nil, nil, &bizerror.ErrBadParam{Cause: errors.New("file reference is required")}
	}
	var latest struct{ Latest int }
	if err := tx.Model(&Version{}).Select("COALESCE(MAX(version), 0) AS latest").
		Where("document_id = ?", documentID).Scan(&latest).Error; err != nil {
		return nil, nil, err
	}
	v := &Version{
		ID:         idgen.NextID(idWorker),
		DocumentID: documentID,
		Version:    latest.Latest + 1,
		FileRef:    c.FileRef,
		Note:       c.Note,
		CreatorID:  s.Identity.ID,
		CreateTime: types.CurrentTimestamp(),
	}
	if err := tx.Create(v).Error; err != nil {
		return nil, nil, err
	}
	ev, err := event.CreateEvent(event.EntityDocument, documentID, event.ActionVersionAdded,
		event.Details{"version": "v" + strconv.Itoa(v.Version), "note": c.Note}, &s.Identity, v.CreateTime, tx)
	if err != nil {
		return nil, nil, err
	}
	return v, ev, nil
}

func ListVersions(documentID types.ID, s *session.Session) ([]Version, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if _, err := LoadDocument(db, documentID); err != nil {
		return nil, err
	}
	versions := []Version{}
	if err := db.Where(&Version{DocumentID: documentID}).Order("version DESC").Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

// MarkExecuted records that an approved document was put into effect.
func MarkExecuted(documentID types.ID, s *session.Session) (*Document, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		r := tx.Model(&Document{}).Where("id = ? AND status = ?", documentID, StatusApproved).Update("status", StatusExecuted)
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected == 0 {
			if _, err := LoadDocument(tx, documentID); err != nil {
				return err
			}
			return fmt.Errorf("%w: only approved documents can be executed", bizerror.ErrInvalidState)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return DetailDocument(documentID, s)
}

// Store exposes the document collaborator to the approval engine, calls join the caller's transaction.
type Store struct{}

func (Store) GetDocumentAttributes(db *gorm.DB, id types.ID) (*Attributes, error) {
	doc, err := LoadDocument(db, id)
	if err != nil {
		return nil, err
	}
	attrs := doc.Attributes()
	return &attrs, nil
}

func (Store) SetDocumentStatus(db *gorm.DB, id types.ID, status Status) error {
	r := db.Model(&Document{}).Where("id = ?", id).Update("status", status)
	if r.Error != nil {
		return r.Error
	}
	if r.RowsAffected == 0 {
		_, err := LoadDocument(db, id)
		return err
	}
	return nil
}
