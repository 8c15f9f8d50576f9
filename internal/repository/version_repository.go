package repository

import (
	"banking-kb-go/internal/model"

	"gorm.io/gorm"
)

// VersionRepository 接口定义了文档版本历史的持久化操作。
type VersionRepository interface {
	// AppendVersion 把旧的当前版本降级后追加新版本记录，整体在一个事务内完成。
	// 不变量：同一 document_id 下至多一条记录 is_current = true。
	AppendVersion(version *model.DocumentVersion) error
	FindByDocumentID(documentID string) ([]model.DocumentVersion, error)
	DeleteByDocumentID(documentID string) error
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository 创建一个新的 VersionRepository 实例。
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) AppendVersion(version *model.DocumentVersion) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.DocumentVersion{}).
			Where("document_id = ? AND is_current = ?", version.DocumentID, true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		version.IsCurrent = true
		return tx.Create(version).Error
	})
}

// FindByDocumentID 返回文档的版本历史，按创建时间倒序（最新在前）。
func (r *versionRepository) FindByDocumentID(documentID string) ([]model.DocumentVersion, error) {
	var versions []model.DocumentVersion
	err := r.db.Where("document_id = ?", documentID).Order("created_at DESC, id DESC").Find(&versions).Error
	return versions, err
}

func (r *versionRepository) DeleteByDocumentID(documentID string) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.DocumentVersion{}).Error
}
