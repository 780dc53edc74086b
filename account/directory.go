package account

import (
	"context"
	"docflow/bizerror"
	"docflow/config"
	"docflow/persistence"
	"docflow/session"
	"errors"
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Directory is the read-only user lookup used to resolve step assignees.
// Lookups run on the caller's db handle so they join the caller's transaction.
type Directory interface {
	FindByID(db *gorm.DB, id types.ID) (*User, error)
	FindByName(db *gorm.DB, name string) (*User, error)
	FindByRole(db *gorm.DB, role string) ([]User, error)
	FindByDepartment(db *gorm.DB, department string) ([]User, error)
}

// UserDirectory caches single-user lookups, users are immutable once seeded.
type UserDirectory struct {
	cache *cache.Cache
}

var (
	QueryUsersFunc = QueryUsers
)

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{cache: cache.New(10*time.Minute, time.Minute)}
}

func (d *UserDirectory) FindByID(db *gorm.DB, id types.ID) (*User, error) {
	key := "id:" + id.String()
	if v, found := d.cache.Get(key); found {
		u := v.(User)
		return &u, nil
	}
	var u User
	if err := db.Where(&User{ID: id}).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	d.remember(u)
	return &u, nil
}

func (d *UserDirectory) FindByName(db *gorm.DB, name string) (*User, error) {
	key := "name:" + name
	if v, found := d.cache.Get(key); found {
		u := v.(User)
		return &u, nil
	}
	var u User
	if err := db.Where("name = ?", name).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	d.remember(u)
	return &u, nil
}

func (d *UserDirectory) FindByRole(db *gorm.DB, role string) ([]User, error) {
	users := []User{}
	if err := db.Where("LOWER(role) = LOWER(?)", role).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (d *UserDirectory) FindByDepartment(db *gorm.DB, department string) ([]User, error) {
	users := []User{}
	if err := db.Where("LOWER(department) = LOWER(?)", department).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (d *UserDirectory) remember(u User) {
	d.cache.SetDefault("id:"+u.ID.String(), u)
	d.cache.SetDefault("name:"+u.Name, u)
}

// ResolveIdentity adapts the directory to session.IdentityResolver.
func (d *UserDirectory) ResolveIdentity(ctx context.Context, id types.ID) (*session.Identity, error) {
	u, err := d.FindByID(persistence.ActiveDataSourceManager.GormDB(ctx), id)
	if err != nil {
		return nil, err
	}
	identity := u.Identity()
	return &identity, nil
}

func QueryUsers(q UserQuery, s *session.Session) ([]User, error) {
	users := []User{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if q.Name != "" {
		db = db.Where("name LIKE ?", "%"+q.Name+"%")
	}
	if q.Role != "" {
		db = db.Where("LOWER(role) = LOWER(?)", q.Role)
	}
	if q.Department != "" {
		db = db.Where("LOWER(department) = LOWER(?)", q.Department)
	}
	if err := db.Order("name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SeedUsers inserts the catalog users that are not present yet, returns the number inserted.
func SeedUsers(db *gorm.DB, users []config.SeedUser) (int, error) {
	inserted := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		now := types.CurrentTimestamp()
		for _, su := range users {
			var existing User
			err := tx.Where(&User{ID: types.ID(su.ID)}).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			u := User{ID: types.ID(su.ID), Name: su.Name, Email: su.Email, Role: su.Role, Department: su.Department, CreateTime: now}
			if err := tx.Create(&u).Error; err != nil {
				return fmt.Errorf("seed user %s: %w", su.Name, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logrus.WithField("inserted", inserted).Info("user directory seeded")
	return inserted, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bizerror.ErrNotFound
	}
	return err
}
