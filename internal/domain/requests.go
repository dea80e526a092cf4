package domain

import "time"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	Profile     UserProfile `json:"profile"`
	ExpiresAt   string      `json:"expires_at"`
}

type CheckoutRequest struct {
	Items   []CartLine                `json:"items"`
	Tenders map[PaymentMethod]float64 `json:"tenders"`
}

type Totals struct {
	Subtotal   float64 `json:"subtotal"`
	Tax        float64 `json:"tax"`
	Discount   float64 `json:"discount"`
	Total      float64 `json:"total"`
	FinalTotal float64 `json:"final_total"`
}

type CartQuoteResponse struct {
	Items  []CartItem `json:"items"`
	Totals Totals     `json:"totals"`
}

type StockShortfall struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Stock     int    `json:"stock"`
}

type CheckoutResponse struct {
	Transaction Transaction      `json:"transaction"`
	Change      float64          `json:"change"`
	Oversold    []StockShortfall `json:"oversold,omitempty"`
}

type ShiftOpenRequest struct {
	StartAmount float64 `json:"start_amount"`
}

type CashMovementRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

type ShiftCloseRequest struct {
	EndAmount float64 `json:"end_amount"`
}

type PurchaseQuoteRequest struct {
	ProductID string   `json:"product_id"`
	Cost      *float64 `json:"cost,omitempty"`
	Margin    *float64 `json:"margin,omitempty"`
	Price     *float64 `json:"price,omitempty"`
}

type PurchaseQuote struct {
	Cost   float64 `json:"cost"`
	Margin float64 `json:"margin"`
	Price  float64 `json:"price"`
}

type PurchaseLine struct {
	ProductID string   `json:"product_id"`
	VariantID string   `json:"variant_id,omitempty"`
	Quantity  int      `json:"quantity"`
	Cost      float64  `json:"cost"`
	Price     *float64 `json:"price,omitempty"`
	Margin    *float64 `json:"margin,omitempty"`
}

type PurchaseRequest struct {
	SupplierID string         `json:"supplier_id"`
	Items      []PurchaseLine `json:"items"`
}

type SupplierCreateRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type CustomerCreateRequest struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

type SendReceiptRequest struct {
	Phone string `json:"phone"`
}

type Document struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"-"`
}

type SendReceiptResponse struct {
	DocumentRef string `json:"document_ref"`
	DocumentURL string `json:"document_url,omitempty"`
	Queued      bool   `json:"queued"`
}

type ImageUploadResponse struct {
	URL     string  `json:"url"`
	Product Product `json:"product"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type CashierUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	StoreID   string    `json:"store_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
