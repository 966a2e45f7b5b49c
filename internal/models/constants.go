package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
	StatusCompleted = "completed"
)

const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04"
	DateTimeLayout = "2006-01-02T15:04"
)

const (
	// DefaultServiceDuration длительность услуги по умолчанию, минуты
	DefaultServiceDuration = 30

	// DefaultMaxAdvanceDays насколько далеко вперед можно записаться
	DefaultMaxAdvanceDays = 365

	// DefaultSlotCacheTTL время жизни кэша слотов в секундах
	DefaultSlotCacheTTL = 30

	// DefaultBookingAttempts попыток записи на клиента в окне
	DefaultBookingAttempts = 10

	// DefaultBookingAttemptsWindow окно ограничения попыток записи, секунды
	DefaultBookingAttemptsWindow = 60

	// EventQueueSize размер очереди пересылки событий
	EventQueueSize = 256
)

// AllowedDurations is the default set of service lengths in minutes.
var AllowedDurations = []int{30, 60}
