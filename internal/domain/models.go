package domain

import "time"

type Variant struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	Barcode     string    `json:"barcode,omitempty"`
	HasVariants bool      `json:"has_variants"`
	Variants    []Variant `json:"variants,omitempty"`
	Images      []string  `json:"images,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VariantByID returns the index of the variant or -1.
func (p Product) VariantByID(id string) int {
	for i, v := range p.Variants {
		if v.ID == id {
			return i
		}
	}
	return -1
}

type ProductInput struct {
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	Barcode     string    `json:"barcode"`
	HasVariants bool      `json:"has_variants"`
	Variants    []Variant `json:"variants"`
}

type CartItem struct {
	ProductID   string  `json:"product_id"`
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	VariantID   string  `json:"variant_id,omitempty"`
	VariantName string  `json:"variant_name,omitempty"`
	Discount    float64 `json:"discount"`
}

type CartLine struct {
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
	Discount  float64 `json:"discount"`
}

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentYape  PaymentMethod = "yape"
	PaymentPlin  PaymentMethod = "plin"
	PaymentMixed PaymentMethod = "mixed"
)

func (m PaymentMethod) IsCash() bool {
	return m == PaymentCash
}

type PaymentDetail struct {
	Method PaymentMethod `json:"method"`
	Amount float64       `json:"amount"`
}

type Transaction struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Items         []CartItem      `json:"items"`
	Subtotal      float64         `json:"subtotal"`
	Tax           float64         `json:"tax"`
	Discount      float64         `json:"discount"`
	Total         float64         `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Payments      []PaymentDetail `json:"payments"`
	Change        float64         `json:"change"`
	ShiftID       string          `json:"shift_id"`
	Cashier       string          `json:"cashier,omitempty"`
}

type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "OPEN"
	ShiftClosed ShiftStatus = "CLOSED"
)

type CashShift struct {
	ID                string      `json:"id"`
	StartTime         time.Time   `json:"start_time"`
	StartAmount       float64     `json:"start_amount"`
	Status            ShiftStatus `json:"status"`
	EndTime           *time.Time  `json:"end_time,omitempty"`
	EndAmount         *float64    `json:"end_amount,omitempty"`
	TotalSalesCash    float64     `json:"total_sales_cash"`
	TotalSalesDigital float64     `json:"total_sales_digital"`
	OpenedBy          string      `json:"opened_by,omitempty"`
}

type MovementType string

const (
	MovementOpen  MovementType = "OPEN"
	MovementClose MovementType = "CLOSE"
	MovementIn    MovementType = "IN"
	MovementOut   MovementType = "OUT"
)

type CashMovement struct {
	ID          string       `json:"id"`
	ShiftID     string       `json:"shift_id"`
	Type        MovementType `json:"type"`
	Amount      float64      `json:"amount"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
	CreatedBy   string       `json:"created_by,omitempty"`
}

type ShiftReport struct {
	Shift        CashShift      `json:"shift"`
	Movements    []CashMovement `json:"movements"`
	Transactions []Transaction  `json:"transactions"`
	CashIn       float64        `json:"cash_in"`
	CashOut      float64        `json:"cash_out"`
	ExpectedCash float64        `json:"expected_cash"`
	Difference   float64        `json:"difference"`
}

type ShiftDrift struct {
	ShiftID         string  `json:"shift_id"`
	StoredCash      float64 `json:"stored_cash"`
	StoredDigital   float64 `json:"stored_digital"`
	ComputedCash    float64 `json:"computed_cash"`
	ComputedDigital float64 `json:"computed_digital"`
	Transactions    int     `json:"transactions"`
}

type PurchaseItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	VariantID   string  `json:"variant_id,omitempty"`
	Quantity    int     `json:"quantity"`
	Cost        float64 `json:"cost"`
	NewPrice    float64 `json:"new_price"`
}

type Purchase struct {
	ID         string         `json:"id"`
	Date       time.Time      `json:"date"`
	SupplierID string         `json:"supplier_id"`
	Total      float64        `json:"total"`
	Items      []PurchaseItem `json:"items"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Document  string    `json:"document,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type StoreSettings struct {
	Name             string  `json:"name"`
	Currency         string  `json:"currency"`
	TaxRate          float64 `json:"tax_rate"`
	PricesIncludeTax bool    `json:"prices_include_tax"`
	Address          string  `json:"address"`
	Phone            string  `json:"phone"`
}

func DefaultSettings() StoreSettings {
	return StoreSettings{
		Name:             "PosGo! Store",
		Currency:         "S/",
		TaxRate:          0.18,
		PricesIncludeTax: true,
		Address:          "Av. Principal 123, Lima",
		Phone:            "999-999-999",
	}
}

const (
	RoleCashier    = "cashier"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"

	DemoUserID = "test-user-demo"
)

type UserProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	StoreID string `json:"store_id,omitempty"`
}

type UserAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	StoreID   string    `json:"store_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor is the authenticated caller attached to a request context.
type Actor struct {
	UserID    string
	Name      string
	Role      string
	StoreID   string
	SessionID string
}

func (a Actor) Profile() UserProfile {
	return UserProfile{ID: a.UserID, Name: a.Name, Role: a.Role, StoreID: a.StoreID}
}

// StoreSummary is one tenant as listed in the platform console.
type StoreSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Lead is a prospective merchant who asked to be contacted.
type Lead struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BusinessName string    `json:"business_name"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
}

type LeadCreateRequest struct {
	Name         string `json:"name"`
	BusinessName string `json:"business_name"`
	Phone        string `json:"phone"`
}

// Snapshot is the full tenant state returned by the initial load.
type Snapshot struct {
	Products      []Product      `json:"products"`
	Transactions  []Transaction  `json:"transactions"`
	Purchases     []Purchase     `json:"purchases"`
	Settings      StoreSettings  `json:"settings"`
	Customers     []Customer     `json:"customers"`
	Suppliers     []Supplier     `json:"suppliers"`
	Shifts        []CashShift    `json:"shifts"`
	Movements     []CashMovement `json:"movements"`
	ActiveShiftID string         `json:"active_shift_id,omitempty"`
}
