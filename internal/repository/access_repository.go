package repository

import (
	"errors"

	"banking-kb-go/internal/model"

	"gorm.io/gorm"
)

// AccessGrantRepository 接口定义了文档访问授权的持久化操作。
type AccessGrantRepository interface {
	Upsert(grant *model.AccessGrant) error
	FindByDocumentID(documentID string) (*model.AccessGrant, error)
	DeleteByDocumentID(documentID string) error
}

type accessGrantRepository struct {
	db *gorm.DB
}

// NewAccessGrantRepository 创建一个新的 AccessGrantRepository 实例。
func NewAccessGrantRepository(db *gorm.DB) AccessGrantRepository {
	return &accessGrantRepository{db: db}
}

func (r *accessGrantRepository) Upsert(grant *model.AccessGrant) error {
	return r.db.Save(grant).Error
}

func (r *accessGrantRepository) FindByDocumentID(documentID string) (*model.AccessGrant, error) {
	var grant model.AccessGrant
	err := r.db.Where("document_id = ?", documentID).First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *accessGrantRepository) DeleteByDocumentID(documentID string) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.AccessGrant{}).Error
}
