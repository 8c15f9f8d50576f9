// Package model 包含了应用的数据模型定义。
package model

import (
	"strings"
	"time"
)

// DocumentStatus 表示文档处理流程的状态机取值。
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Role 表示访问控制的用户角色。
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleAuditor Role = "auditor"
)

// ValidRole 判断给定字符串是否为可识别的角色。
func ValidRole(r string) bool {
	switch Role(r) {
	case RoleAdmin, RoleUser, RoleAuditor:
		return true
	}
	return false
}

// Document 对应于数据库中的 'documents' 表，记录每个已摄取文档的元数据与状态。
type Document struct {
	ID            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title         string         `gorm:"type:varchar(255);not null" json:"title"`
	Author        string         `gorm:"type:varchar(255)" json:"author"`
	Source        string         `gorm:"type:varchar(255)" json:"source"`
	DocumentType  string         `gorm:"type:varchar(50);not null;default:'regulation'" json:"documentType"` // regulation, law, guideline, memo
	Jurisdiction  string         `gorm:"type:varchar(50);not null;default:'SAMA'" json:"jurisdiction"`       // SAMA, CMA, other
	EffectiveDate *time.Time     `gorm:"default:null" json:"effectiveDate"`
	Version       string         `gorm:"type:varchar(50);not null;default:'1.0'" json:"version"`
	Language      string         `gorm:"type:varchar(10);not null;default:'ar'" json:"language"` // ar, en, both
	PageCount     int            `gorm:"not null;default:0" json:"pageCount"`
	FileSizeBytes int64          `gorm:"not null;default:0" json:"fileSizeBytes"`
	Status        DocumentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ChunkCount    int            `gorm:"not null;default:0" json:"chunkCount"`
	StoragePath   string         `gorm:"type:varchar(255)" json:"storagePath"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// DocumentVersion 对应于数据库中的 'document_versions' 表。
// 不变量：同一 document_id 下至多一条记录 is_current = true。
type DocumentVersion struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID        string    `gorm:"type:varchar(36);not null;index" json:"documentId"`
	Version           string    `gorm:"type:varchar(50);not null" json:"version"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	UpdatedBy         string    `gorm:"type:varchar(100)" json:"updatedBy"`
	ChangeDescription string    `gorm:"type:text" json:"changeDescription"`
	IsCurrent         bool      `gorm:"not null;default:false" json:"isCurrent"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentVersion) TableName() string {
	return "document_versions"
}

// AccessGrant 对应于数据库中的 'access_grants' 表。
// 角色集合以逗号分隔存储，例如 "admin,user,auditor"。
type AccessGrant struct {
	DocumentID string    `gorm:"type:varchar(36);primaryKey" json:"documentId"`
	Roles      string    `gorm:"type:varchar(100);not null" json:"roles"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (AccessGrant) TableName() string {
	return "access_grants"
}

// RoleList 解析逗号分隔的角色集合。
func (g *AccessGrant) RoleList() []Role {
	parts := strings.Split(g.Roles, ",")
	roles := make([]Role, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			roles = append(roles, Role(p))
		}
	}
	return roles
}

// Allows 判断给定角色是否在授权集合内。
func (g *AccessGrant) Allows(role Role) bool {
	for _, r := range g.RoleList() {
		if r == role {
			return true
		}
	}
	return false
}

// JoinRoles 将角色集合编码为存储格式。
func JoinRoles(roles []Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}

// AllRoles 是新文档默认的访问授权集合。
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleUser, RoleAuditor}
}
