// Package media stores product images and rendered documents in object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
)

const (
	MaxImageBytes    = 500 * 1024
	MaxProductImages = 2
)

var (
	ErrImageTooLarge   = errors.New("image exceeds 500KB")
	ErrUnsupportedType = errors.New("unsupported image type")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ObjectStore writes an object and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// DetectImage sniffs the content type of an upload and checks the size limit.
// It returns the content type and the file extension to store it under.
func DetectImage(body []byte) (string, string, error) {
	if len(body) > MaxImageBytes {
		return "", "", ErrImageTooLarge
	}
	contentType := http.DetectContentType(body)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return contentType, ext, nil
}

func ProductImageKey(storeID, productID, imageID, ext string) string {
	return path.Join("stores", storeID, "products", productID, imageID+ext)
}

func ReceiptKey(storeID, transactionID string) string {
	return path.Join("stores", storeID, "receipts", transactionID+".html")
}

// Memory keeps objects in process. It serves demo mode and tests.
type Memory struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

type Object struct {
	Body        []byte
	ContentType string
}

func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]Object)}
}

func (m *Memory) Put(_ context.Context, key string, body []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Body: append([]byte(nil), body...), ContentType: contentType}
	return m.baseURL + "/" + strings.TrimLeft(key, "/"), nil
}

func (m *Memory) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}
