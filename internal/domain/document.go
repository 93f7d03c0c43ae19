package domain

import "time"

// DocumentContentType — тип содержимого отрендеренного предложения.
const DocumentContentType = "application/pdf"

// Document — закэшированный PDF предложения.
type Document struct {
	OfferID     string
	Content     []byte
	ContentType string
	GeneratedAt time.Time
}

// DocumentInfo — метаданные документа без содержимого.
type DocumentInfo struct {
	OfferID      string
	Exists       bool
	LastModified time.Time
	Fresh        bool
	Size         int
}
