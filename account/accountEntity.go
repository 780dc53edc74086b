package account

import (
	"docflow/session"

	"github.com/fundwit/go-commons/types"
)

type User struct {
	ID         types.ID        `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name       string          `json:"name" gorm:"unique_index:uni_user_name"`
	Email      string          `json:"email"`
	Role       string          `json:"role" gorm:"index:idx_user_role"`
	Department string          `json:"department" gorm:"index:idx_user_department"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type UserQuery struct {
	Name       string `json:"name" form:"name"`
	Role       string `json:"role" form:"role"`
	Department string `json:"department" form:"department"`
}

func (u User) Identity() session.Identity {
	return session.Identity{ID: u.ID, Name: u.Name, Role: u.Role, Department: u.Department}
}
