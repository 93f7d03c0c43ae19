package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора предложения.
	ErrOfferIDRequired = errors.New("offer_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствующего имени клиента в снимке.
	ErrCustomerNameRequired = errors.New("customer name is required")
	// Ошибка некорректного email клиента.
	ErrCustomerEmailInvalid = errors.New("customer email is invalid")
	// Ошибка неизвестного типа позиции.
	ErrItemTypeInvalid = errors.New("item type must be product or service")
	// Ошибка отсутствующей ссылки на товар.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка при некорректном количестве (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrItemPriceInvalid = errors.New("item unit price must be non-negative")
	// Ошибка скидки, превышающей сумму позиции или отрицательной.
	ErrItemDiscountInvalid = errors.New("item discount must be between zero and line amount")
	// Ошибка ставки налога вне диапазона [0, 100].
	ErrTaxRateInvalid = errors.New("item tax rate must be between 0 and 100")
	// Ошибка несоответствия итоговой суммы и суммы позиций.
	ErrAmountMismatch = errors.New("offer total does not match items sum")
	// Ошибка неизвестного статуса.
	ErrStatusInvalid = errors.New("offer status is invalid")
	// Ошибка неизвестного события в настройках уведомлений.
	ErrNotificationEventInvalid = errors.New("notification event is invalid")

	// ErrOfferNotFound возвращается, если предложения нет или оно удалено.
	ErrOfferNotFound = errors.New("offer not found")
	// ErrItemNotFound возвращается, если позиции нет в предложении.
	ErrItemNotFound = errors.New("offer item not found")
	// ErrDocumentNotFound — в кэше нет документа для предложения.
	ErrDocumentNotFound = errors.New("offer document not found")

	// ErrInvalidTransition — целевой статус не является допустимым преемником.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEmptyOfferItems — попытка активировать draft без позиций.
	ErrEmptyOfferItems = errors.New("offer has no items")
	// ErrOfferNotEditable — позиции можно менять только в draft.
	ErrOfferNotEditable = errors.New("offer items can only be changed in draft")
	// ErrNotAcceptable — предложение не находится в статусе, допускающем принятие.
	ErrNotAcceptable = errors.New("offer is not available for acceptance")
	// ErrConcurrentModification — сохранённое состояние изменилось между чтением и записью.
	ErrConcurrentModification = errors.New("offer was modified concurrently")
	// ErrReservationFailed — пакет резервирования не удался и уже откатан.
	ErrReservationFailed = errors.New("inventory reservation failed")
	// ErrAlreadyProcessed — предложение уже принято (повторный вызов).
	ErrAlreadyProcessed = errors.New("offer already accepted")

	// ErrInventoryUnavailable — бизнес-ошибка склада (нет стока).
	ErrInventoryUnavailable = errors.New("inventory unavailable")
	// ErrInventoryTemporary — временная ошибка склада, можно повторить попытку.
	ErrInventoryTemporary = errors.New("inventory temporary error")
	// ErrReservationNotFound — склад не знает такого резерва.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrCircuitOpen — circuit breaker перед складом разомкнут.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTokenMissing — в запросе нет токена принятия.
	ErrTokenMissing = errors.New("acceptance token is required")
	// ErrTokenInvalid — токен не прошёл проверку подписи или не относится к предложению.
	ErrTokenInvalid = errors.New("acceptance token is invalid")
	// ErrTokenExpired — срок действия токена истёк.
	ErrTokenExpired = errors.New("acceptance token has expired")
	// ErrEmailMismatch — email не совпадает со снимком клиента.
	ErrEmailMismatch = errors.New("email does not match offer customer")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// ErrorKind — класс ошибки, по которому внешние слои выбирают код ответа.
type ErrorKind string

const (
	KindValidation             ErrorKind = "validation"
	KindNotFound               ErrorKind = "not_found"
	KindInvalidTransition      ErrorKind = "invalid_transition"
	KindConcurrentModification ErrorKind = "concurrent_modification"
	KindReservation            ErrorKind = "reservation"
	KindAlreadyProcessed       ErrorKind = "already_processed"
	KindInternal               ErrorKind = "internal"
)

var kindsBySentinel = []struct {
	err  error
	kind ErrorKind
}{
	{ErrOfferNotFound, KindNotFound},
	{ErrItemNotFound, KindNotFound},
	{ErrDocumentNotFound, KindNotFound},
	{ErrIdempotencyKeyNotFound, KindNotFound},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrEmptyOfferItems, KindInvalidTransition},
	{ErrOfferNotEditable, KindInvalidTransition},
	{ErrNotAcceptable, KindInvalidTransition},
	{ErrConcurrentModification, KindConcurrentModification},
	{ErrReservationFailed, KindReservation},
	{ErrInventoryTemporary, KindReservation},
	{ErrAlreadyProcessed, KindAlreadyProcessed},
	{ErrIdempotencyKeyAlreadyExists, KindAlreadyProcessed},
	{ErrOfferIDRequired, KindValidation},
	{ErrCurrencyRequired, KindValidation},
	{ErrCustomerNameRequired, KindValidation},
	{ErrCustomerEmailInvalid, KindValidation},
	{ErrItemTypeInvalid, KindValidation},
	{ErrItemProductRequired, KindValidation},
	{ErrItemQtyInvalid, KindValidation},
	{ErrItemPriceInvalid, KindValidation},
	{ErrItemDiscountInvalid, KindValidation},
	{ErrTaxRateInvalid, KindValidation},
	{ErrAmountMismatch, KindValidation},
	{ErrStatusInvalid, KindValidation},
	{ErrNotificationEventInvalid, KindValidation},
	{ErrTokenMissing, KindValidation},
	{ErrTokenInvalid, KindValidation},
	{ErrTokenExpired, KindValidation},
	{ErrEmailMismatch, KindValidation},
	{ErrIdempotencyKeyRequired, KindValidation},
	{ErrIdempotencyRequestHashRequired, KindValidation},
	{ErrIdempotencyHashMismatch, KindValidation},
}

// Kind классифицирует ошибку. Неизвестные ошибки считаются внутренними.
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return KindValidation
	}
	var reservation *ReservationError
	if errors.As(err, &reservation) {
		return KindReservation
	}
	for _, entry := range kindsBySentinel {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

// Retryable сообщает, имеет ли смысл повторить операцию: после перечитывания
// состояния или когда склад снова ответит.
func Retryable(err error) bool {
	return Kind(err) == KindConcurrentModification || errors.Is(err, ErrInventoryTemporary)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом параллельного изменения.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsIdempotencyConflict проверяет, является ли ошибка конфликтом ключа идемпотентности.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// ValidationError собирает все нарушения входных данных.
type ValidationError struct {
	Errs []error
}

// NewValidationError возвращает nil, если нарушений нет.
func NewValidationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errs: errs}
}

func (e *ValidationError) Error() string {
	if len(e.Errs) == 1 {
		return "validation: " + e.Errs[0].Error()
	}
	return fmt.Sprintf("validation: %v (and %d more)", e.Errs[0], len(e.Errs)-1)
}

// Unwrap позволяет errors.Is находить конкретные нарушения.
func (e *ValidationError) Unwrap() []error {
	return e.Errs
}

// ReservationError описывает позицию, на которой упал пакет резервирования.
// К моменту возврата все резервы пакета уже сняты.
type ReservationError struct {
	ItemID    string
	VariantID string
	Err       error
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("reserve item %s (variant %s): %v", e.ItemID, e.VariantID, e.Err)
}

func (e *ReservationError) Unwrap() error {
	return e.Err
}

// Is делает ReservationError совместимой с ErrReservationFailed.
func (e *ReservationError) Is(target error) bool {
	return target == ErrReservationFailed
}
