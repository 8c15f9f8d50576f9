// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"

	"banking-kb-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository 接口定义了文档元数据的持久化操作。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id string) (*model.Document, error)
	FindAll() ([]model.Document, error)
	Update(doc *model.Document) error
	UpdateStatus(id string, status model.DocumentStatus) error
	MarkCompleted(id string, chunkCount, pageCount int) error
	Delete(id string) error
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

func (r *documentRepository) FindByID(id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindAll 返回全部文档，按创建时间倒序。
func (r *documentRepository) FindAll() ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Order("created_at DESC").Find(&docs).Error
	return docs, err
}

func (r *documentRepository) Update(doc *model.Document) error {
	return r.db.Save(doc).Error
}

func (r *documentRepository) UpdateStatus(id string, status model.DocumentStatus) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).Update("status", status).Error
}

func (r *documentRepository) MarkCompleted(id string, chunkCount, pageCount int) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      model.StatusCompleted,
		"chunk_count": chunkCount,
		"page_count":  pageCount,
	}).Error
}

func (r *documentRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Document{}).Error
}
