// Package realtime определяет контракт внешнего канала доставки событий.
// Канал доставляет обновления только текущим подписчикам (fire-and-forget,
// без повторного проигрывания); реализация находится в infrastructure.
package realtime

import (
	"context"
)

// EventKind представляет тип исходящего события канала.
type EventKind string

const (
	// KindMasteryUpdated - процент/уровень/тренд концепта обновлены.
	// Отправляется после каждой записанной попытки, безусловно.
	KindMasteryUpdated EventKind = "mastery-updated"

	// KindConceptDiscovered - студент впервые продемонстрировал концепт.
	KindConceptDiscovered EventKind = "concept-discovered"

	// KindMilestoneAchieved - записана веха пересечения порога.
	KindMilestoneAchieved EventKind = "milestone-achieved"
)

// String возвращает строковое представление типа события.
func (k EventKind) String() string {
	return string(k)
}

// Message - одно исходящее сообщение канала.
type Message struct {
	// Kind - тип события.
	Kind EventKind `json:"event_kind"`

	// StudentID - адресат: комната студента.
	StudentID string `json:"student_id"`

	// Payload - полезная нагрузка события.
	Payload map[string]interface{} `json:"payload"`
}

// Channel - внешний канал доставки в реальном времени.
//
// Контракт: Push обязан быть неблокирующим либо ограниченным по времени -
// медленный или недоступный канал не должен тормозить конвейер оценивания.
// Ошибки доставки логируются вызывающим кодом и никогда не откатывают
// запись в реестре: реестр - источник истины, канал - best-effort.
type Channel interface {
	// Push отправляет сообщение текущим подписчикам студента.
	Push(ctx context.Context, msg Message) error
}
