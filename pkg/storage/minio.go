// Package storage提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"banking-kb-go/internal/config"
	"banking-kb-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage 保存原始 PDF 文件，按文档 ID 寻址。
type ObjectStorage interface {
	SaveDocument(ctx context.Context, documentID string, data []byte) error
	GetDocument(ctx context.Context, documentID string) ([]byte, error)
	RemoveDocument(ctx context.Context, documentID string) error
}

type minioStorage struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOStorage 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewMinIOStorage(cfg config.MinIOConfig) (ObjectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	// 检查存储桶 (Bucket) 是否存在，如果不存在则创建
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", cfg.BucketName)
	}

	return &minioStorage{client: client, bucketName: cfg.BucketName}, nil
}

// ObjectName 返回文档在桶内的对象路径。
func ObjectName(documentID string) string {
	return "documents/" + documentID + ".pdf"
}

func (s *minioStorage) SaveDocument(ctx context.Context, documentID string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucketName, ObjectName(documentID),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return fmt.Errorf("上传文档 %s 到 MinIO 失败: %w", documentID, err)
	}
	return nil
}

func (s *minioStorage) GetDocument(ctx context.Context, documentID string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, ObjectName(documentID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("从 MinIO 获取文档 %s 失败: %w", documentID, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取文档 %s 内容失败: %w", documentID, err)
	}
	return data, nil
}

func (s *minioStorage) RemoveDocument(ctx context.Context, documentID string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, ObjectName(documentID), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("从 MinIO 删除文档 %s 失败: %w", documentID, err)
	}
	return nil
}
