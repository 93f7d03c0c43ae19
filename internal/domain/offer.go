package domain

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus описывает жизненный цикл коммерческого предложения.
type OfferStatus string

const (
	// OfferStatusDraft — предложение редактируется, резервов нет.
	OfferStatusDraft OfferStatus = "draft"
	// OfferStatusActive — предложение отправлено клиенту, товары зарезервированы.
	OfferStatusActive OfferStatus = "active"
	// OfferStatusAccepted — клиент принял предложение, резервы сохраняются.
	OfferStatusAccepted OfferStatus = "accepted"
	// OfferStatusCompleted — предложение конвертировано в заказ (терминальный).
	OfferStatusCompleted OfferStatus = "completed"
	// OfferStatusCancelled — предложение отменено (терминальный).
	OfferStatusCancelled OfferStatus = "cancelled"
)

// DefaultOfferNumberPrefix — префикс номера предложения по умолчанию.
const DefaultOfferNumberPrefix = "ANG-"

// MaxPageSize ограничивает размер страницы при листинге.
const MaxPageSize = 100

var transitions = map[OfferStatus][]OfferStatus{
	OfferStatusDraft:    {OfferStatusActive, OfferStatusCancelled},
	OfferStatusActive:   {OfferStatusAccepted, OfferStatusCancelled},
	OfferStatusAccepted: {OfferStatusCompleted, OfferStatusCancelled},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferStatusDraft, OfferStatusActive, OfferStatusAccepted, OfferStatusCompleted, OfferStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса нет переходов.
func (s OfferStatus) Terminal() bool {
	return s == OfferStatusCompleted || s == OfferStatusCancelled
}

// CanTransition проверяет наличие ребра from → to в графе статусов.
func CanTransition(from, to OfferStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses возвращает допустимых преемников статуса.
func NextStatuses(from OfferStatus) []OfferStatus {
	next := transitions[from]
	out := make([]OfferStatus, len(next))
	copy(out, next)
	return out
}

// ItemType различает товары (резервируемые) и услуги.
type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypeService ItemType = "service"
)

// Valid проверяет тип позиции.
func (t ItemType) Valid() bool {
	return t == ItemTypeProduct || t == ItemTypeService
}

// OfferItem представляет одну позицию предложения.
type OfferItem struct {
	ID        string
	OfferID   string
	ItemType  ItemType
	ProductID string
	// VariantID опционален; резерв делается по варианту, а при его отсутствии по товару.
	VariantID string
	Name      string
	Quantity  int64
	// Денежные поля в минимальных единицах валюты.
	UnitPriceMinor  int64
	DiscountMinor   int64
	TotalPriceMinor int64
	// TaxRate в процентах, цены включают налог.
	TaxRate       decimal.Decimal
	TaxMinor      int64
	SortOrder     int
	ReservationID string
	CreatedAt     time.Time
}

// Reservable сообщает, нужно ли резервировать позицию на складе.
func (i OfferItem) Reservable() bool {
	return i.ItemType == ItemTypeProduct
}

// Reserved сообщает, держит ли позиция резерв.
func (i OfferItem) Reserved() bool {
	return i.ReservationID != ""
}

// InventoryVariant возвращает идентификатор, по которому склад ведёт остатки.
func (i OfferItem) InventoryVariant() string {
	if i.VariantID != "" {
		return i.VariantID
	}
	return i.ProductID
}

// ComputeTotals пересчитывает сумму и налог позиции.
// Налог выделяется из цены: tax = total * rate / (100 + rate).
func (i *OfferItem) ComputeTotals() {
	i.TotalPriceMinor = i.Quantity*i.UnitPriceMinor - i.DiscountMinor
	if i.TaxRate.IsZero() || i.TotalPriceMinor == 0 {
		i.TaxMinor = 0
		return
	}
	total := decimal.NewFromInt(i.TotalPriceMinor)
	hundred := decimal.NewFromInt(100)
	i.TaxMinor = total.Mul(i.TaxRate).Div(hundred.Add(i.TaxRate)).Round(0).IntPart()
}

// Validate проверяет входные поля позиции.
func (i *OfferItem) Validate() []error {
	var errs []error
	if !i.ItemType.Valid() {
		errs = append(errs, ErrItemTypeInvalid)
	}
	if i.ProductID == "" {
		errs = append(errs, ErrItemProductRequired)
	}
	if i.Quantity <= 0 {
		errs = append(errs, ErrItemQtyInvalid)
	}
	if i.UnitPriceMinor < 0 {
		errs = append(errs, ErrItemPriceInvalid)
	}
	if i.DiscountMinor < 0 || (i.Quantity > 0 && i.UnitPriceMinor >= 0 && i.DiscountMinor > i.Quantity*i.UnitPriceMinor) {
		errs = append(errs, ErrItemDiscountInvalid)
	}
	if i.TaxRate.IsNegative() || i.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, ErrTaxRateInvalid)
	}
	return errs
}

// CustomerSnapshot — копия данных клиента на момент создания предложения.
type CustomerSnapshot struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// Validate проверяет обязательные поля клиента.
func (c CustomerSnapshot) Validate() []error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil || strings.TrimSpace(c.Email) == "" {
		errs = append(errs, ErrCustomerEmailInvalid)
	}
	return errs
}

// EmailMatches сравнивает email без учёта регистра и пробелов по краям.
func (c CustomerSnapshot) EmailMatches(email string) bool {
	stored := strings.TrimSpace(c.Email)
	return stored != "" && strings.EqualFold(stored, strings.TrimSpace(email))
}

// Offer агрегирует состояние предложения и его позиции.
type Offer struct {
	ID     string
	Number string
	Status OfferStatus
	// Currency — ISO-код валюты; суммы в минимальных единицах.
	Currency      string
	SubtotalMinor int64
	TaxMinor      int64
	TotalMinor    int64
	Customer      CustomerSnapshot
	Notes         string
	Items         []OfferItem
	// NotificationOverrides перекрывают системные настройки уведомлений по событиям.
	NotificationOverrides map[OfferEvent]bool
	PDFURL                string
	// ReservationExpiresAt носит рекомендательный характер, движок его не отслеживает.
	ReservationExpiresAt *time.Time
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	AcceptedAt           *time.Time
	CompletedAt          *time.Time
	CancelledAt          *time.Time
	DeletedAt            *time.Time
}

// HasReservations вычисляется по позициям: true, если хотя бы одна держит резерв.
func (o Offer) HasReservations() bool {
	for _, item := range o.Items {
		if item.Reserved() {
			return true
		}
	}
	return false
}

// ItemsInDisplayOrder возвращает копию позиций, отсортированную по SortOrder.
func (o Offer) ItemsInDisplayOrder() []OfferItem {
	items := make([]OfferItem, len(o.Items))
	copy(items, o.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortOrder < items[j].SortOrder
	})
	return items
}

// ItemByID ищет позицию по идентификатору.
func (o Offer) ItemByID(id string) (OfferItem, bool) {
	for _, item := range o.Items {
		if item.ID == id {
			return item, true
		}
	}
	return OfferItem{}, false
}

// RecalculateTotals пересчитывает позиции и итоги предложения.
func (o *Offer) RecalculateTotals() {
	var total, tax int64
	for idx := range o.Items {
		o.Items[idx].ComputeTotals()
		total += o.Items[idx].TotalPriceMinor
		tax += o.Items[idx].TaxMinor
	}
	o.TotalMinor = total
	o.TaxMinor = tax
	o.SubtotalMinor = total - tax
}

// ApplyStatus переводит предложение в статус и проставляет соответствующую метку времени.
// Метки ставятся один раз и никогда не сбрасываются.
func (o *Offer) ApplyStatus(to OfferStatus, at time.Time) {
	o.Status = to
	o.UpdatedAt = at
	stamp := at
	switch to {
	case OfferStatusAccepted:
		if o.AcceptedAt == nil {
			o.AcceptedAt = &stamp
		}
	case OfferStatusCompleted:
		if o.CompletedAt == nil {
			o.CompletedAt = &stamp
		}
	case OfferStatusCancelled:
		if o.CancelledAt == nil {
			o.CancelledAt = &stamp
		}
	}
}

// ValidateInvariants проверяет базовые инварианты предложения и возвращает список замечаний.
func (o *Offer) ValidateInvariants() []error {
	var errs []error

	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}
	errs = append(errs, o.Customer.Validate()...)

	var calc int64
	for idx := range o.Items {
		errs = append(errs, o.Items[idx].Validate()...)
		calc += o.Items[idx].TotalPriceMinor
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// Clone возвращает глубокую копию, безопасную для хранения в памяти.
func (o Offer) Clone() Offer {
	out := o
	if o.Items != nil {
		out.Items = make([]OfferItem, len(o.Items))
		copy(out.Items, o.Items)
	}
	if o.NotificationOverrides != nil {
		out.NotificationOverrides = make(map[OfferEvent]bool, len(o.NotificationOverrides))
		for k, v := range o.NotificationOverrides {
			out.NotificationOverrides[k] = v
		}
	}
	out.ReservationExpiresAt = cloneTime(o.ReservationExpiresAt)
	out.AcceptedAt = cloneTime(o.AcceptedAt)
	out.CompletedAt = cloneTime(o.CompletedAt)
	out.CancelledAt = cloneTime(o.CancelledAt)
	out.DeletedAt = cloneTime(o.DeletedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// FormatOfferNumber строит отображаемый номер: префикс + 5 цифр с ведущими нулями.
func FormatOfferNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%05d", prefix, seq)
}

// OfferFilter задаёт параметры листинга.
type OfferFilter struct {
	Status OfferStatus
	Limit  int
	Offset int
}

// Normalize приводит пагинацию к допустимым границам.
func (f OfferFilter) Normalize() OfferFilter {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// OfferDetails — изменяемые поля предложения (статус сюда не входит).
type OfferDetails struct {
	Notes                 *string
	Customer              *CustomerSnapshot
	NotificationOverrides map[OfferEvent]bool
}
