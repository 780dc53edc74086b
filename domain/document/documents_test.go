package document_test

import (
	"context"
	"docflow/bizerror"
	"docflow/config"
	"docflow/domain/document"
	"docflow/event"
	"docflow/persistence"
	"docflow/session"
	"docflow/testinfra"
	"errors"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

func setup(t *testing.T, testDatabase **testinfra.TestDatabase) {
	db := testinfra.StartTestDatabase("docflow")
	*testDatabase = db
	assert.Nil(t, db.DS.GormDB(context.Background()).AutoMigrate(
		&document.Document{}, &document.Version{}, &event.EventRecord{}).Error)
	persistence.ActiveDataSourceManager = db.DS
}

func teardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopTestDatabase(testDatabase)
	}
}

var (
	testSession = session.NewSession(context.Background(), session.Identity{ID: 1003, Name: "Omar Contributor", Role: "Contributor"})
	catalog     = config.DefaultCatalog()
)

func TestCreateDocument(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should create draft with canonical vocabulary and first version", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		begin := time.Now()
		doc, err := document.CreateDocument(&document.DocumentCreation{
			Title: " Pump housing ", Department: "engineering", DocType: "drawing", Sensitivity: "internal",
			Tags: []string{"pump", " ", "rev,a"}, RetentionPolicy: "Business record (7y)",
			FileRef: "s3://drawings/pump-a.pdf", Note: "initial",
		}, catalog, testSession)
		Expect(err).To(BeNil())
		Expect(doc.ID).ToNot(BeZero())
		Expect(doc.Title).To(Equal("Pump housing"))
		Expect(doc.Department).To(Equal("Engineering"))
		Expect(doc.DocType).To(Equal("Drawing"))
		Expect(doc.Sensitivity).To(Equal("Internal"))
		Expect(doc.TagList()).To(Equal([]string{"pump", "rev a"}))
		Expect(doc.Status).To(Equal(document.StatusDraft))
		Expect(doc.CreatorID).To(Equal(types.ID(1003)))
		Expect(doc.RetentionPolicy).To(Equal("Business record (7y)"))
		Expect(doc.RetentionExpiry).ToNot(BeNil())
		Expect(doc.RetentionExpiry.Time().Year()).To(BeNumerically(">=", begin.Year()+7))

		loaded, err := document.DetailDocument(doc.ID, testSession)
		Expect(err).To(BeNil())
		Expect(loaded.Title).To(Equal("Pump housing"))
		Expect(loaded.Status).To(Equal(document.StatusDraft))
		Expect(loaded.RetentionExpiry).ToNot(BeNil())
		Expect(loaded.RetentionExpiry.Time().Equal(doc.RetentionExpiry.Time())).To(BeTrue())

		versions, err := document.ListVersions(doc.ID, testSession)
		Expect(err).To(BeNil())
		Expect(len(versions)).To(Equal(1))
		Expect(versions[0].Version).To(Equal(1))
		Expect(versions[0].FileRef).To(Equal("s3://drawings/pump-a.pdf"))

		events, err := event.QueryEvents(persistence.ActiveDataSourceManager.GormDB(context.Background()), event.EntityDocument, doc.ID)
		Expect(err).To(BeNil())
		Expect(len(events)).To(Equal(2))
		Expect(events[0].Action).To(Equal(event.ActionDocumentCreated))
		Expect(events[1].Action).To(Equal(event.ActionVersionAdded))
		Expect(events[1].Details["version"]).To(Equal("v1"))
	})

	t.Run("should create document without version when no file is given", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		doc, err := document.CreateDocument(&document.DocumentCreation{Title: "Handbook", Department: "HR", DocType: "Policy"}, catalog, testSession)
		Expect(err).To(BeNil())
		Expect(doc.Sensitivity).To(Equal(""))
		Expect(doc.RetentionExpiry).To(BeNil())

		versions, err := document.ListVersions(doc.ID, testSession)
		Expect(err).To(BeNil())
		Expect(len(versions)).To(BeZero())
	})

	t.Run("should store custom retention years", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		doc, err := document.CreateDocument(&document.DocumentCreation{Title: "NDA", Department: "Legal", DocType: "Contract",
			RetentionPolicy: "Custom", RetentionYears: 3}, catalog, testSession)
		Expect(err).To(BeNil())
		Expect(doc.RetentionYears).To(Equal(3))
		Expect(doc.RetentionExpiry).ToNot(BeNil())

		doc, err = document.CreateDocument(&document.DocumentCreation{Title: "Charter", Department: "Legal", DocType: "Policy",
			RetentionPolicy: "Until superseded"}, catalog, testSession)
		Expect(err).To(BeNil())
		Expect(doc.RetentionExpiry).To(BeNil())
	})

	t.Run("should reject unknown vocabulary", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		cases := []document.DocumentCreation{
			{Title: "", Department: "HR", DocType: "Policy"},
			{Title: "x", Department: "Space", DocType: "Policy"},
			{Title: "x", Department: "HR", DocType: "Memo"},
			{Title: "x", Department: "HR", DocType: "Policy", Sensitivity: "Top secret"},
			{Title: "x", Department: "HR", DocType: "Policy", RetentionPolicy: "Forever"},
			{Title: "x", Department: "HR", DocType: "Policy", RetentionPolicy: "Custom"},
		}
		for _, c := range cases {
			c := c
			doc, err := document.CreateDocument(&c, catalog, testSession)
			Expect(doc).To(BeNil())
			var badParam *bizerror.ErrBadParam
			Expect(errors.As(err, &badParam)).To(BeTrue())
		}

		documents, err := document.QueryDocuments(&document.DocumentQuery{}, testSession)
		Expect(err).To(BeNil())
		Expect(len(documents)).To(BeZero())
	})
}

func TestDocumentVersions(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should number versions sequentially and list newest first", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		doc, err := document.CreateDocument(&document.DocumentCreation{Title: "SOP", Department: "Operations", DocType: "Procedure",
			FileRef: "file-1"}, catalog, testSession)
		Expect(err).To(BeNil())

		v, err := document.AddVersion(doc.ID, &document.VersionCreation{FileRef: "file-2", Note: "typos"}, testSession)
		Expect(err).To(BeNil())
		Expect(v.Version).To(Equal(2))
		v, err = document.AddVersion(doc.ID, &document.VersionCreation{FileRef: "file-3"}, testSession)
		Expect(err).To(BeNil())
		Expect(v.Version).To(Equal(3))

		versions, err := document.ListVersions(doc.ID, testSession)
		Expect(err).To(BeNil())
		Expect(len(versions)).To(Equal(3))
		Expect(versions[0].Version).To(Equal(3))
		Expect(versions[2].FileRef).To(Equal("file-1"))
	})

	t.Run("should fail for missing document or file", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		v, err := document.AddVersion(404, &document.VersionCreation{FileRef: "file"}, testSession)
		Expect(v).To(BeNil())
		Expect(errors.Is(err, bizerror.ErrNotFound)).To(BeTrue())

		_, err = document.ListVersions(404, testSession)
		Expect(errors.Is(err, bizerror.ErrNotFound)).To(BeTrue())

		doc, err := document.CreateDocument(&document.DocumentCreation{Title: "SOP", Department: "IT", DocType: "Procedure"}, catalog, testSession)
		Expect(err).To(BeNil())
		v, err = document.AddVersion(doc.ID, &document.VersionCreation{FileRef: "  "}, testSession)
		Expect(v).To(BeNil())
		var badParam *bizerror.ErrBadParam
		Expect(errors.As(err, &badParam)).To(BeTrue())
	})
}

func TestQueryDocuments(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should filter by text and attributes", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		d1, err := document.CreateDocument(&document.DocumentCreation{Title: "Pump drawing", Department: "Engineering", DocType: "Drawing",
			Sensitivity: "Internal", Tags: []string{"hydraulics"}}, catalog, testSession)
		Expect(err).To(BeNil())
		d2, err := document.CreateDocument(&document.DocumentCreation{Title: "Supplier agreement", Department: "Procurement", DocType: "Contract",
			Sensitivity: "Confidential"}, catalog, testSession)
		Expect(err).To(BeNil())

		all, err := document.QueryDocuments(&document.DocumentQuery{}, testSession)
		Expect(err).To(BeNil())
		Expect(len(all)).To(Equal(2))
		Expect(all[0].ID).To(Equal(d2.ID))

		found, err := document.QueryDocuments(&document.DocumentQuery{Q: "HYDRAULICS"}, testSession)
		Expect(err).To(BeNil())
		Expect(len(found)).To(Equal(1))
		Expect(found[0].ID).To(Equal(d1.ID))

		found, err = document.QueryDocuments(&document.DocumentQuery{Q: "procure"}, testSession)
		Expect(err).To(BeNil())
		Expect(len(found)).To(Equal(1))
		Expect(found[0].ID).To(Equal(d2.ID))

		found, err = document.QueryDocuments(&document.DocumentQuery{Department: "engineering", DocType: "drawing", Sensitivity: "internal"}, testSession)
		Expect(err).To(BeNil())
		Expect(len(found)).To(Equal(1))

		found, err = document.QueryDocuments(&document.DocumentQuery{Status: string(document.StatusApproved)}, testSession)
		Expect(err).To(BeNil())
		Expect(len(found)).To(BeZero())
	})
}

func TestStoreAndExecution(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should expose attributes and update status", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		doc, err := document.CreateDocument(&document.DocumentCreation{Title: "Invoice 7", Department: "Finance", DocType: "Invoice"}, catalog, testSession)
		Expect(err).To(BeNil())

		store := document.Store{}
		db := persistence.ActiveDataSourceManager.GormDB(context.Background())
		attrs, err := store.GetDocumentAttributes(db, doc.ID)
		Expect(err).To(BeNil())
		Expect(*attrs).To(Equal(document.Attributes{DocType: "Invoice", Department: "Finance", Status: document.StatusDraft}))

		Expect(store.SetDocumentStatus(db, doc.ID, document.StatusReview)).To(BeNil())
		Expect(store.SetDocumentStatus(db, doc.ID, document.StatusReview)).To(BeNil())
		Expect(errors.Is(store.SetDocumentStatus(db, 404, document.StatusReview), bizerror.ErrNotFound)).To(BeTrue())

		_, err = store.GetDocumentAttributes(db, 404)
		Expect(errors.Is(err, bizerror.ErrNotFound)).To(BeTrue())

		executed, err := document.MarkExecuted(doc.ID, testSession)
		Expect(executed).To(BeNil())
		Expect(errors.Is(err, bizerror.ErrInvalidState)).To(BeTrue())

		Expect(store.SetDocumentStatus(db, doc.ID, document.StatusApproved)).To(BeNil())
		executed, err = document.MarkExecuted(doc.ID, testSession)
		Expect(err).To(BeNil())
		Expect(executed.Status).To(Equal(document.StatusExecuted))

		_, err = document.MarkExecuted(404, testSession)
		Expect(errors.Is(err, bizerror.ErrNotFound)).To(BeTrue())
	})
}
