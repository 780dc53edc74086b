package event

import (
	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	EventPersistCreateFunc = eventPersistCreate
)

func eventPersistCreate(record *EventRecord, db *gorm.DB) error {
	return db.Create(record).Error
}

// LoadUnsyncedEvents returns at most limit events not yet pushed to the audit index, oldest first.
func LoadUnsyncedEvents(db *gorm.DB, limit int) ([]EventRecord, error) {
	records := []EventRecord{}
	if err := db.Where("synced = ?", false).Order("id ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func MarkSynced(db *gorm.DB, ids []types.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.Model(&EventRecord{}).Where("id IN (?)", ids).Update("synced", true).Error
}

// QueryEvents lists the audit trail of one entity, oldest first.
func QueryEvents(db *gorm.DB, entity string, entityID types.ID) ([]EventRecord, error) {
	records := []EventRecord{}
	if err := db.Where("entity = ? AND entity_id = ?", entity, entityID).Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
